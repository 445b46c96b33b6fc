package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "CARDKEEPER_"

// envFile is the dotenv file read before the process environment.
var envFile = ".env"

// parseEnv overlays CARDKEEPER_* environment variables. A .env file in the
// working directory is loaded first if present; variables already set in the
// process environment win over it. Malformed durations are ignored.
func parseEnv(config *Config) {
	_ = godotenv.Load(envFile)

	setString(&config.EndpointAddrHTTP, "ADDRESS")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.SecretKey, "SECRET_KEY")
	setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	setDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL")
	setString(&config.S3RootUser, "S3_ROOT_USER")
	setString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setDuration(&config.ExportLinkValidity, "EXPORT_LINK_TTL")
	setString(&config.LogFormat, "LOG_FORMAT")
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name string) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
