package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

type pkcePair struct {
	Verifier  string
	Challenge string
}

func newPKCEPair() pkcePair {
	verifier := oauth2.GenerateVerifier()
	return pkcePair{Verifier: verifier, Challenge: oauth2.S256ChallengeFromVerifier(verifier)}
}

func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
