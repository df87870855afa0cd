package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockVerifier is a mock implementation of the Verifier interface.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, tokenString string) (jwt.Token, error) {
	args := m.Called(ctx, tokenString)

	var token jwt.Token
	if args.Get(0) != nil {
		token = args.Get(0).(jwt.Token)
	}
	return token, args.Error(1)
}

func Test_BearerIdentifier(t *testing.T) {
	// given
	validToken, err := jwt.NewBuilder().
		Subject("user-123").
		Issuer("test-issuer").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)
	noSubject, err := jwt.NewBuilder().Issuer("test-issuer").Build()
	require.NoError(t, err)

	testCases := []struct {
		name       string
		authHeader string
		setupMock  func(m *MockVerifier)
		expectedID string
	}{
		{
			name:       "Success - valid bearer token",
			authHeader: "Bearer valid-token",
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "valid-token").Return(validToken, nil)
			},
			expectedID: "user-123",
		},
		{
			name:       "Failure - no auth header",
			authHeader: "",
			setupMock:  func(m *MockVerifier) {},
		},
		{
			name:       "Failure - not a bearer token",
			authHeader: "Basic some-credentials",
			setupMock:  func(m *MockVerifier) {},
		},
		{
			name:       "Failure - verifier returns error",
			authHeader: "Bearer invalid-token",
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "invalid-token").Return(nil, errors.New("signature is invalid"))
			},
		},
		{
			name:       "Failure - token without subject",
			authHeader: "Bearer anonymous",
			setupMock: func(m *MockVerifier) {
				m.On("Verify", mock.Anything, "anonymous").Return(noSubject, nil)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := new(MockVerifier)
			tc.setupMock(verifier)
			req := httptest.NewRequest("POST", "/", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}

			// when
			userID, err := BearerIdentifier{Verifier: verifier}.Identify(req)

			// then
			if tc.expectedID == "" {
				assert.ErrorIs(t, err, ErrUnauthenticated)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedID, userID)
			}
			verifier.AssertExpectations(t)
		})
	}
}

func Test_HeaderIdentifier(t *testing.T) {
	id := HeaderIdentifier{Header: "X-User-Id"}

	req := httptest.NewRequest("POST", "/", nil)
	_, err := id.Identify(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Set("X-User-Id", " user-7 ")
	userID, err := id.Identify(req)
	require.NoError(t, err)
	assert.Equal(t, "user-7", userID)
}

func Test_BearerIdentifier_CustomClaim(t *testing.T) {
	// given
	token, err := jwt.NewBuilder().Subject("svc-account").Claim("uid", "user-9").Build()
	require.NoError(t, err)
	verifier := new(MockVerifier)
	verifier.On("Verify", mock.Anything, "tok").Return(token, nil)
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "Bearer tok")

	// when
	userID, err := BearerIdentifier{Verifier: verifier, Claim: "uid"}.Identify(req)

	// then
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)
}
