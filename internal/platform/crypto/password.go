package crypto

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IsBcryptHash reports whether stored looks like a bcrypt hash ($2a$, $2b$, $2y$).
func IsBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2")
}

// MatchPassword compares plain against a stored secret that is either a
// bcrypt hash or a literal password. Literal comparison is constant time.
func MatchPassword(stored, plain string) bool {
	if IsBcryptHash(stored) {
		return VerifyPassword(stored, plain)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
}
