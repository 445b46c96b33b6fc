// Package cryptox hashes and verifies account passwords with argon2id.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const SaltLength = 16

// Params are the argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
}

// DefaultParams is what the server uses. Tests may lower Memory.
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltLength)
}

func HashPassword(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// VerifyPassword recomputes the hash and compares it in constant time.
func VerifyPassword(password, salt, hash []byte, p Params) bool {
	return subtle.ConstantTimeCompare(hash, HashPassword(password, salt, p)) == 1
}
