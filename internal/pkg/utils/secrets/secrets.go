package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	Time      = 2
	MemoryMB  = 16
	Threads   = 1
	KeyLen    = 32
	SaltBytes = 16

	MinPasswordLen = 7
)

var (
	ErrEmptySecret       = errors.New("empty secret")
	ErrUnsupportedFormat = errors.New("unsupported hash format")
	ErrInvalidPHC        = errors.New("invalid phc")
)

// HashPassword returns an argon2id PHC string for secret. The pepper is
// appended to the secret before derivation and is never stored.
func HashPassword(secret, pepper string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	salt := make([]byte, SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(secret+pepper), salt, Time, MemoryMB*1024, Threads, KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, MemoryMB*1024, Time, Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks secret against a stored hash. Both argon2id PHC
// strings and bcrypt hashes written by the previous system are accepted;
// bcrypt hashes were produced without a pepper.
func VerifyPassword(secret, pepper, stored string) (bool, error) {
	switch {
	case strings.HasPrefix(stored, "$argon2id$"):
		return verifyArgon2(secret, pepper, stored)
	case isBcrypt(stored):
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnsupportedFormat
	}
}

// NeedsRehash reports whether stored was produced by a scheme or cost
// other than the current argon2id parameters.
func NeedsRehash(stored string) bool {
	if !strings.HasPrefix(stored, "$argon2id$") {
		return true
	}
	parts := strings.Split(stored, "$")
	if len(parts) != 6 {
		return true
	}
	var m, t, p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return true
	}
	return m != MemoryMB*1024 || t != Time || p != Threads
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

func verifyArgon2(secret, pepper, phc string) (bool, error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 {
		return false, ErrInvalidPHC
	}

	var m, t, p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, err
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(secret+pepper), salt, t, m, uint8(p), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// CheckStrength enforces the password rule: at least MinPasswordLen
// characters, one upper-case letter and one digit or symbol. It returns a
// human readable list of the unmet requirements.
func CheckStrength(secret string) []string {
	var problems []string
	if utf8.RuneCountInString(secret) < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("at least %d characters", MinPasswordLen))
	}
	var upper, digitOrSymbol bool
	for _, r := range secret {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			digitOrSymbol = true
		}
	}
	if !upper {
		problems = append(problems, "one uppercase letter")
	}
	if !digitOrSymbol {
		problems = append(problems, "one number or symbol")
	}
	return problems
}
