package oauthmodel

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const stateRandomBytes = 32

// GenerateCodeVerifier returns a 43 character verifier with 256 bits of entropy.
func GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// CodeChallengeS256 derives the S256 code challenge from a verifier.
func CodeChallengeS256(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns a random state value with the issue time appended,
// formatted as "<base64url random>.<unix millis in base 36>".
func GenerateState(now time.Time) (string, error) {
	b := make([]byte, stateRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b) + "." + strconv.FormatInt(now.UnixMilli(), 36), nil
}

// StateIssuedAt returns the issue time embedded in a state produced by GenerateState.
func StateIssuedAt(state string) (time.Time, error) {
	dot := strings.LastIndexByte(state, '.')
	if dot <= 0 || dot == len(state)-1 {
		return time.Time{}, ErrMalformedState
	}
	ms, err := strconv.ParseInt(state[dot+1:], 36, 64)
	if err != nil || ms < 0 {
		return time.Time{}, ErrMalformedState
	}
	return time.UnixMilli(ms), nil
}

// GenerateCorrelationID returns the initiator's local session correlation id.
func GenerateCorrelationID() string {
	return uuid.NewString()
}
