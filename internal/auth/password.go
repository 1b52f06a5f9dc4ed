// Package auth — password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, salts every hash with random bytes, and
// embeds salt and cost in its output:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (work factor: 2^12 rounds)
//	 version
//
// The work factor comes from configuration (BCRYPT_COST) so tests can run
// at the minimum cost while production stays at 12 or above.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the production work factor.
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are rejected
// rather than silently truncated.
const MaxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification at a fixed cost.
// The context-aware methods queue behind a HashLimiter.
type PasswordService struct {
	cost    int
	limiter *HashLimiter
}

// NewPasswordService creates a PasswordService with the given work factor.
// The cost must lie within bcrypt's [MinCost, MaxCost] range.
func NewPasswordService(cost int) (*PasswordService, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordService{cost: cost, limiter: NewHashLimiter(0)}, nil
}

// NewPasswordServiceForTest creates a PasswordService at bcrypt's minimum
// cost. Do NOT use in production.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost, limiter: NewHashLimiter(0)}
}

// WithLimiter replaces the default one-slot-per-CPU limiter.
func (p *PasswordService) WithLimiter(l *HashLimiter) *PasswordService {
	p.limiter = l
	return p
}

// Cost reports the configured work factor.
func (p *PasswordService) Cost() int {
	return p.cost
}

// Hash hashes the given plaintext password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a plaintext password against a stored bcrypt hash.
// Returns nil on match and ErrPasswordMismatch on a wrong password.
//
// bcrypt.CompareHashAndPassword compares in constant time but only reads
// the first 72 bytes, so a longer input could match a stored 72-byte
// password. Hash never accepts such an input, so it is always a mismatch.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if len(plaintext) > MaxPasswordBytes {
		return ErrPasswordMismatch
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// HashContext is Hash, run under the limiter. It fails with ctx.Err() if
// the request goes away while waiting for a slot.
func (p *PasswordService) HashContext(ctx context.Context, plaintext string) (string, error) {
	var (
		hash string
		err  error
	)
	if lerr := p.limiter.Do(ctx, func() { hash, err = p.Hash(plaintext) }); lerr != nil {
		return "", fmt.Errorf("auth: waiting to hash password: %w", lerr)
	}
	return hash, err
}

// VerifyContext is Verify, run under the limiter.
func (p *PasswordService) VerifyContext(ctx context.Context, hash, plaintext string) error {
	var err error
	if lerr := p.limiter.Do(ctx, func() { err = p.Verify(hash, plaintext) }); lerr != nil {
		return fmt.Errorf("auth: waiting to verify password: %w", lerr)
	}
	return err
}
