package app

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

// Alphabet excludes ambiguous characters: 0, O, 1, I, l.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const codeLength = 6

var codePattern = regexp.MustCompile(`^[23456789ABCDEFGHJKLMNPQRSTUVWXYZ]{6}$`)

// GenerateRoomCode returns a random 6-character room code. Uniqueness is the
// caller's problem; CreateRoom regenerates on collision.
func GenerateRoomCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// IsValidRoomCode reports whether code has the shape of a generated code.
func IsValidRoomCode(code string) bool {
	return codePattern.MatchString(code)
}
