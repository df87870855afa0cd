package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identifier resolves the user id of a request.
type Identifier interface {
	Identify(r *http.Request) (string, error)
}

// BearerIdentifier takes the user id from a claim of a verified bearer token.
// Claim defaults to `sub`.
type BearerIdentifier struct {
	Verifier Verifier
	Claim    string
}

func (b BearerIdentifier) Identify(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is required: %w", ErrUnauthenticated)
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return "", fmt.Errorf("bearer token is required: %w", ErrUnauthenticated)
	}

	token, err := b.Verifier.Verify(r.Context(), tokenString)
	if err != nil {
		return "", errors.Join(ErrUnauthenticated, err)
	}
	claim := b.Claim
	if claim == "" {
		claim = jwt.SubjectKey
	}
	var userID string
	if claim == jwt.SubjectKey {
		userID, _ = token.Subject()
	} else if err := token.Get(claim, &userID); err != nil {
		userID = ""
	}
	if userID == "" {
		return "", fmt.Errorf("no claim `%s`: %w", claim, ErrUnauthenticated)
	}
	return userID, nil
}

// HeaderIdentifier trusts a header set by the gateway in front of the storefront.
type HeaderIdentifier struct {
	Header string
}

func (h HeaderIdentifier) Identify(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get(h.Header))
	if userID == "" {
		return "", fmt.Errorf("missing %s header: %w", h.Header, ErrUnauthenticated)
	}
	return userID, nil
}
