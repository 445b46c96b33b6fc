package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers the client flags on fs with the current values of cfg
// as defaults, so anything set on the command line overrides JSON and
// defaults once fs is parsed.
//
// The -c/--config flag is registered only so the flag set accepts it; the
// file itself is read earlier by LoadConfig.
func (cfg *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&cfg.ServerURL, "server", "a", cfg.ServerURL, "base URL of the cardkeeper API")
	fs.StringVarP(&cfg.CacheFile, "cache", "f", cfg.CacheFile, "path of the local card cache")
	fs.DurationVarP(&cfg.RequestTimeout, "timeout", "t", cfg.RequestTimeout, "per-request timeout")
	fs.StringP("config", "c", "", "JSON configuration file")
}
