package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

const (
	DefaultIssuer = "login-broker"

	minSecretLength = 32
	subkeyLength    = 32

	signingKeyInfo = "login-broker bearer signing"
	digestKeyInfo  = "login-broker bearer digest"
)

var (
	ErrSecretTooShort = errors.New("token secret too short")
	ErrInvalidToken   = errors.New("invalid token")
)

// Claims carried by a bearer token. The token is opaque to the browser; the server
// only trusts a token whose digest matches the one stored on the session.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager mints bearer tokens and produces the digests stored alongside sessions.
type Manager struct {
	signingKey []byte
	digestKey  []byte
	issuer     string
	nowFunc    func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// New derives independent signing and digest keys from secret.
func New(secret []byte, opts ...ManagerOption) (*Manager, error) {
	if len(secret) < minSecretLength {
		return nil, errors.Wrapf(ErrSecretTooShort, "[token.New] need at least %d bytes", minSecretLength)
	}

	m := &Manager{
		issuer:  DefaultIssuer,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	if m.signingKey, err = deriveKey(secret, signingKeyInfo); err != nil {
		return nil, errors.Wrap(err, "[token.New] derive signing key")
	}
	if m.digestKey, err = deriveKey(secret, digestKeyInfo); err != nil {
		return nil, errors.Wrap(err, "[token.New] derive digest key")
	}
	return m, nil
}

// Mint creates a new bearer token for a session. Every call yields a distinct token.
func (m *Manager) Mint(sessionID, subject string, expiresAt time.Time) (string, error) {
	now := m.nowFunc()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "[token.Mint] sign")
	}
	return signed, nil
}

// Digest returns the keyed BLAKE2b-256 digest of a token, hex encoded.
func (m *Manager) Digest(token string) string {
	h, err := blake2b.New256(m.digestKey)
	if err != nil {
		// Only possible with a key longer than 64 bytes.
		panic(err)
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// Matches reports whether token hashes to digest. The comparison is constant time.
func (m *Manager) Matches(token, digest string) bool {
	if token == "" || digest == "" {
		return false
	}
	return hmac.Equal([]byte(m.Digest(token)), []byte(digest))
}

// SessionID returns the session a token was minted for. The signature and issuer are
// checked but expiry is not, so an expired token can still identify its session for logout.
func (m *Manager) SessionID(token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.Issuer != m.issuer || claims.SessionID == "" {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, subkeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}
