package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/logistics-bills/internal/model"
)

func TestParser_RoundTrip(t *testing.T) {
	parser := NewParser("secret")
	token, err := parser.Issue(model.Principal{UserID: "u-1", Username: "alice", Role: model.RoleStaff}, time.Minute)
	require.NoError(t, err)

	principal, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, model.Principal{UserID: "u-1", Username: "alice", Role: model.RoleStaff}, principal)
}

func TestParser_Rejects(t *testing.T) {
	parser := NewParser("secret")

	expired, err := parser.Issue(model.Principal{Username: "alice", Role: model.RoleStaff}, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewParser("other").Issue(model.Principal{Username: "alice", Role: model.RoleStaff}, time.Minute)
	require.NoError(t, err)

	badRole, err := parser.Issue(model.Principal{Username: "alice", Role: "root"}, time.Minute)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "alice", Role: "staff"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{Username: "alice", Role: "staff"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"expired":   expired,
		"wrong key": otherKey,
		"bad role":  badRole,
		"alg none":  noneAlg,
		"wrong alg": hs512,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parser.Parse(token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestParser_FallsBackToSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "customer",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	principal, err := NewParser("secret").Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", principal.Username)
	assert.True(t, principal.IsCustomer())
}
