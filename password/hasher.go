package password

import (
	"errors"
	"strings"
	"sync"
)

// Algorithm selects the encoding used for new hashes.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned when a bcrypt input exceeds 72 bytes.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrMalformedHash is returned when a stored hash cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedHash is returned when a stored hash uses an unknown scheme.
	ErrUnsupportedHash = errors.New("unsupported password hash scheme")
)

const dummyPassword = "oroauth-timing-equalizer"

// Hasher produces hashes with the configured algorithm and verifies hashes
// of either supported scheme, dispatching on the encoded prefix.
//
// Hasher is safe for concurrent use.
type Hasher struct {
	algorithm Algorithm
	bcrypt    *Bcrypt
	argon2    *Argon2

	dummyOnce sync.Once
	dummyHash string
}

// NewHasher builds a hasher. Both schemes are always configured so stored
// hashes of either kind verify; algorithm only selects what Hash emits.
func NewHasher(algorithm Algorithm, bcryptCost int, argonCfg Config) (*Hasher, error) {
	switch algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, errors.New("unsupported password algorithm")
	}
	b, err := NewBcrypt(bcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(argonCfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{algorithm: algorithm, bcrypt: b, argon2: a}, nil
}

// Algorithm returns the scheme used for new hashes.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Hash returns a new salted hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

// Verify reports whether password matches encodedHash. Mismatches, empty
// inputs, malformed hashes and unknown schemes all report false.
func (h *Hasher) Verify(password, encodedHash string) bool {
	ok, err := h.Check(password, encodedHash)
	return err == nil && ok
}

// Check is Verify with the failure reason preserved for callers that log it.
func (h *Hasher) Check(password, encodedHash string) (bool, error) {
	switch {
	case encodedHash == "":
		return false, ErrMalformedHash
	case isBcrypt(encodedHash):
		return h.bcrypt.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return h.argon2.Verify(password, encodedHash)
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsUpgrade reports whether encodedHash should be replaced by a fresh
// Hash: it uses the other scheme or weaker parameters.
func (h *Hasher) NeedsUpgrade(encodedHash string) bool {
	var (
		weak bool
		err  error
	)
	switch {
	case isBcrypt(encodedHash):
		if h.algorithm != AlgorithmBcrypt {
			return true
		}
		weak, err = h.bcrypt.NeedsUpgrade(encodedHash)
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		if h.algorithm != AlgorithmArgon2id {
			return true
		}
		weak, err = h.argon2.NeedsUpgrade(encodedHash)
	default:
		return false
	}
	return err == nil && weak
}

// Equalize spends roughly one verification's worth of work against a
// throwaway hash. Callers use it when there is no stored hash to check.
func (h *Hasher) Equalize(password string) {
	h.dummyOnce.Do(func() {
		hash, err := h.Hash(dummyPassword)
		if err == nil {
			h.dummyHash = hash
		}
	})
	if h.dummyHash == "" {
		return
	}
	_, _ = h.Check(password, h.dummyHash)
}
