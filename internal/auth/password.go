package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/example/ec-wallet-shop/internal/apperror"
)

var ErrPasswordTooShort = apperror.New(apperror.ErrValidation, "password must be at least 8 characters")

const minPasswordLength = 8

// BcryptCost is the work factor used by HashPassword. Tests lower it.
var BcryptCost = 12

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
