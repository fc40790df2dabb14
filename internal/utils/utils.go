package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GenerateID generates a unique ID with the given prefix
func GenerateID(prefix string) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 10

	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}

	return fmt.Sprintf("%s-%s", prefix, string(result))
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NormalizeEmail lowercases and trims an email so uniqueness checks are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateAccountNumber validates the 10-digit account number format.
// The leading digit is never zero, so the width is fixed.
func ValidateAccountNumber(accountNumber string) bool {
	if len(accountNumber) != 10 || accountNumber[0] == '0' {
		return false
	}
	for i := 0; i < len(accountNumber); i++ {
		if accountNumber[i] < '0' || accountNumber[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateAccountID validates the internal account ID format.
func ValidateAccountID(id string) bool {
	return strings.HasPrefix(id, "acc-")
}

// ValidateTransactionID validates the transaction record ID format.
func ValidateTransactionID(transactionID string) bool {
	return strings.HasPrefix(transactionID, "tan-")
}
