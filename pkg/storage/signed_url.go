package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("download token invalid")
	// ErrTokenExpired is returned once the embedded deadline passes.
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner mints and verifies self-contained download tokens. A
// token names a job, a relative file path, and a deadline, bound together
// by an HMAC so links can be handed out without a session.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. A non-positive TTL defaults to a day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate signs a token for the given job and file path.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, errors.New("job id and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret not configured")
	}

	deadline := time.Now().Add(s.ttl)
	encPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	exp := strconv.FormatInt(deadline.Unix(), 10)
	sig := s.sign(jobID, exp, encPath)

	return strings.Join([]string{jobID, exp, encPath, sig}, "."), deadline, nil
}

// Parse verifies a token and returns what it names. Cleanup paths set
// allowExpired to resolve files behind tokens that are already stale.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	jobID, exp, encPath, sig := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(jobID, exp, encPath)), []byte(sig)) {
		return "", "", time.Time{}, ErrTokenInvalid
	}

	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	deadline := time.Unix(unix, 0)
	if !allowExpired && time.Now().After(deadline) {
		return "", "", time.Time{}, ErrTokenExpired
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: bad path encoding", ErrTokenInvalid)
	}
	return jobID, string(rawPath), deadline, nil
}

func (s *SignedURLSigner) sign(jobID, exp, encPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", jobID, exp, encPath)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
