package password

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxBytes is the input length bcrypt actually consumes.
const bcryptMaxBytes = 72

// Hash validates password against the policy and returns its bcrypt hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	input, err := c.prepare(password)
	if err != nil {
		return "", err
	}

	h, err := bcrypt.GenerateFromPassword(input, c.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(h), nil
}

// MaxVerifyCost is the highest stored cost Verify will evaluate when the
// configured cost is lower.
const MaxVerifyCost = 16

// Verify checks whether password matches the given encoded hash.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported hashes.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, ErrInvalidHash
	}
	// Attacker-controlled hash strings must not pin the CPU. Hashes written
	// at a higher, since lowered, cost stay verifiable up to the ceiling.
	if cost > max(MaxVerifyCost, c.Cost) {
		return false, ErrInvalidHash
	}

	input, err := c.prepare(password)
	if err != nil {
		// Inputs we could never have hashed cannot match.
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(encodedHash), input)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encodedHash was produced with a different cost.
func (c Config) NeedsRehash(encodedHash string) bool {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return true
	}
	return cost != c.Cost
}

func (c Config) prepare(password string) ([]byte, error) {
	if len(password) <= bcryptMaxBytes {
		return []byte(password), nil
	}
	if !c.HandleLongPasswords {
		return nil, ErrPasswordTooLong
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(sum[:])), nil
}
