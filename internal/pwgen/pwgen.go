// Package pwgen generates passwords for the user account of new installations.
package pwgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// charset leaves out characters which are easily confused when the password
// is read off the screen (0/O, 1/l/I).
const charset = "abcdefghijkmnopqrstuvwxyz" +
	"ABCDEFGHJKLMNPQRSTUVWXYZ" +
	"23456789"

func randomChar() (byte, error) {
	bn, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[bn.Int64()], nil
}

// RandomPassword returns n random alphanumeric characters, which can be typed
// on any keyboard layout the console might start with.
func RandomPassword(n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("password length must be positive, got %d", n)
	}
	pw := make([]byte, n)
	for i := range pw {
		c, err := randomChar()
		if err != nil {
			return "", err
		}
		pw[i] = c
	}
	return string(pw), nil
}
