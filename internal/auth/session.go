package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminSubject is the subject of every admin token.
const AdminSubject = "admin"

// ErrInvalidCredentials is returned when the admin password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminSession is the credential an admin client holds for the lifetime of its process.
type AdminSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session is usable at now.
func (s *AdminSession) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.ExpiresAt)
}

// HashPassword derives a bcrypt hash for a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	return string(hash), nil
}

// Authenticator exchanges the admin password for a signed session.
type Authenticator struct {
	cfg  Config
	hash []byte
	ttl  time.Duration
	now  func() time.Time
}

// NewAuthenticator constructs an Authenticator from a bcrypt password hash.
func NewAuthenticator(cfg Config, passwordHash string, ttl time.Duration) (*Authenticator, error) {
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	return &Authenticator{cfg: cfg, hash: []byte(passwordHash), ttl: ttl, now: time.Now}, nil
}

// Login verifies password and issues an AdminSession.
func (a *Authenticator) Login(password string) (*AdminSession, error) {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	issued := a.now().UTC()
	expires := issued.Add(a.ttl)
	token, err := Issue(a.cfg, AdminSubject, AdminScopes, issued, expires)
	if err != nil {
		return nil, err
	}
	return &AdminSession{Token: token, ExpiresAt: expires.Truncate(time.Second)}, nil
}
