package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword hashes a password using bcrypt
func hashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// checkPasswordHash verifies a password against a bcrypt hash
func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Users maps a username to its bcrypt hash.
type Users map[string]string

// NewUsers hashes plain passwords into a Users table.
func NewUsers(plain map[string]string, cost int) (Users, error) {
	users := make(Users, len(plain))
	for name, pw := range plain {
		h, err := hashPassword(pw, cost)
		if err != nil {
			return nil, err
		}
		users[name] = h
	}
	return users, nil
}

var (
	staticOnce  sync.Once
	staticUsers Users
	staticErr   error
)

// StaticUsers returns the built-in accounts. Hashing happens once.
func StaticUsers() (Users, error) {
	staticOnce.Do(func() {
		staticUsers, staticErr = NewUsers(map[string]string{
			"admin": "password123",
			"user":  "userpass",
		}, bcrypt.DefaultCost)
	})
	return staticUsers, staticErr
}
