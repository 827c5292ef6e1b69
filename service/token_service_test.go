package service

import (
	"go-websecurity-api/model"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenService_RejectsWeakSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewTokenService(strings.Repeat("x", 31), time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewTokenService(strings.Repeat("x", 32), time.Minute, time.Hour)
	assert.NoError(t, err)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, clock)
	user := testUser()

	for _, typ := range []model.TokenType{model.TokenTypeAccess, model.TokenTypeRefresh} {
		t.Run(string(typ), func(t *testing.T) {
			raw, err := svc.Issue(user, typ)
			require.NoError(t, err)

			claims, err := svc.Verify(raw)
			require.NoError(t, err)
			assert.Equal(t, "alice", claims.Subject)
			assert.Equal(t, 7, claims.UserID)
			assert.Equal(t, model.RoleUser, claims.Role)
			assert.Equal(t, typ, claims.Type)
			assert.NotEmpty(t, claims.ID)
			assert.Equal(t, clock.t.Add(svc.TTL(typ)).Unix(), claims.ExpiresAt.Unix())
		})
	}
}

func TestTokenService_UniqueIDs(t *testing.T) {
	svc := newTestTokenService(t, nil)
	a, err := svc.Issue(testUser(), model.TokenTypeRefresh)
	require.NoError(t, err)
	b, err := svc.Issue(testUser(), model.TokenTypeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "tokens issued in the same second must differ")
}

func TestTokenService_NormalizesRole(t *testing.T) {
	svc := newTestTokenService(t, nil)

	raw, err := svc.Issue(&model.User{ID: 1, Username: "root", Role: "ADMIN"}, model.TokenTypeAccess)
	require.NoError(t, err)
	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	raw, err = svc.Issue(&model.User{ID: 2, Username: "bob", Role: ""}, model.TokenTypeAccess)
	require.NoError(t, err)
	claims, err = svc.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, claims.Role)
}

func TestTokenService_VerifyRejects(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestTokenService(t, clock)

	raw, err := svc.Issue(testUser(), model.TokenTypeAccess)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		clock.Advance(16 * time.Minute)
		defer clock.Advance(-16 * time.Minute)
		_, err := svc.Verify(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		assert.False(t, svc.IsValid(raw))
	})

	t.Run("tampered signature", func(t *testing.T) {
		tampered := raw[:strings.LastIndex(raw, ".")+1] + strings.Repeat("A", 43)
		_, err := svc.Verify(tampered)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := NewTokenService(strings.Repeat("k", 32), time.Minute, time.Hour)
		require.NoError(t, err)
		_, err = other.Verify(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Verify("not.a.jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
		_, err = svc.Verify("")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := &model.AppClaims{
			UserID: 7,
			Type:   model.TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Verify(unsigned)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := &model.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = svc.Verify(signed)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
