package patient

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	accessCodeLength   = 8
	accessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O or 1/I

	// maxCodeAttempts bounds the retry loop on unique-index collisions.
	maxCodeAttempts = 5
)

// ErrAccessCodeTaken is returned by repositories when a code collides with
// one already assigned.
var ErrAccessCodeTaken = errors.New("access code already assigned")

// GenerateAccessCode returns a random 8-character upper-case code.
func GenerateAccessCode() (string, error) {
	buf := make([]byte, accessCodeLength)
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
