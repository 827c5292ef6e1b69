package service

import (
	"context"
	"errors"
	"go-websecurity-api/model"
	"go-websecurity-api/repository"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rotationFixture struct {
	clock  *fakeClock
	users  *repository.MemoryUserRepository
	store  *repository.MemoryTokenRepository
	tokens *TokenService
	svc    *RefreshTokenService
	user   *model.User
}

func newRotationFixture(t *testing.T, cfg RefreshTokenConfig) *rotationFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	users := repository.NewMemoryUserRepository()
	user := &model.User{Username: "alice", Email: "alice@example.com", Password: "hash", Role: string(model.RoleUser)}
	require.NoError(t, users.CreateUser(context.Background(), user))

	store := repository.NewMemoryTokenRepository()
	tokens := newTestTokenService(t, clock)
	if cfg.Pepper == "" {
		cfg.Pepper = "pepper"
	}
	svc := NewRefreshTokenService(store, users, tokens, newTestCookieService(), cfg)
	svc.now = clock.Now

	return &rotationFixture{clock: clock, users: users, store: store, tokens: tokens, svc: svc, user: user}
}

func (f *rotationFixture) login(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	raw, err := f.svc.IssueAndStore(context.Background(), rr, f.user)
	require.NoError(t, err)
	return raw
}

func (f *rotationFixture) record(t *testing.T, raw string) *model.RefreshToken {
	t.Helper()
	rec, err := f.store.GetByTokenHash(context.Background(), f.svc.HashToken(raw))
	require.NoError(t, err)
	return rec
}

func responseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRefreshTokenService_IssueAndStore(t *testing.T) {
	f := newRotationFixture(t, RefreshTokenConfig{})
	rr := httptest.NewRecorder()

	raw, err := f.svc.IssueAndStore(context.Background(), rr, f.user)
	require.NoError(t, err)

	cookie := responseCookie(rr, "refresh_token")
	require.NotNil(t, cookie)
	assert.Equal(t, raw, cookie.Value)
	assert.Equal(t, "/auth", cookie.Path)
	assert.True(t, cookie.HttpOnly)

	rec := f.record(t, raw)
	assert.Len(t, rec.TokenHash, 64)
	assert.NotContains(t, rec.TokenHash, raw)
	assert.Equal(t, f.user.ID, rec.UserID)
	assert.Equal(t, model.TokenActive, rec.State(f.clock.Now()))
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), rec.ExpiresAt)
}

func TestRefreshTokenService_HashTokenUsesPepper(t *testing.T) {
	a := newRotationFixture(t, RefreshTokenConfig{Pepper: "one"})
	b := newRotationFixture(t, RefreshTokenConfig{Pepper: "two"})

	assert.Equal(t, a.svc.HashToken("raw"), a.svc.HashToken("raw"))
	assert.NotEqual(t, a.svc.HashToken("raw"), b.svc.HashToken("raw"))
}

func TestRefreshTokenService_RotateOK(t *testing.T) {
	f := newRotationFixture(t, RefreshTokenConfig{})
	old := f.login(t)

	rr := httptest.NewRecorder()
	result, err := f.svc.Rotate(context.Background(), rr, old)
	require.NoError(t, err)
	assert.Equal(t, RotationOK, result.Status)
	assert.Equal(t, f.user.ID, result.User.ID)

	cookie := responseCookie(rr, "refresh_token")
	require.NotNil(t, cookie)
	assert.NotEqual(t, old, cookie.Value)

	oldRec := f.record(t, old)
	newRec := f.record(t, cookie.Value)
	assert.Equal(t, model.TokenReplaced, oldRec.State(f.clock.Now()))
	require.NotNil(t, oldRec.ReplacedBy)
	assert.Equal(t, newRec.ID, *oldRec.ReplacedBy)
	assert.Equal(t, model.TokenActive, newRec.State(f.clock.Now()))
}

func TestRefreshTokenService_ReuseRevokesEverySession(t *testing.T) {
	f := newRotationFixture(t, RefreshTokenConfig{})
	ctx := context.Background()

	sessionA := f.login(t)
	sessionB := f.login(t)

	// Another user's session must survive the containment.
	bob := &model.User{Username: "bob", Email: "bob@example.com", Password: "hash"}
	require.NoError(t, f.users.CreateUser(ctx, bob))
	bobToken, err := f.svc.IssueAndStore(ctx, httptest.NewRecorder(), bob)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	result, err := f.svc.Rotate(ctx, rr, sessionA)
	require.NoError(t, err)
	require.Equal(t, RotationOK, result.Status)
	rotated := responseCookie(rr, "refresh_token").Value

	rr = httptest.NewRecorder()
	result, err = f.svc.Rotate(ctx, rr, sessionA)
	require.NoError(t, err)
	assert.Equal(t, RotationReused, result.Status)
	assert.Nil(t, result.User)

	cleared := responseCookie(rr, "refresh_token")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)

	now := f.clock.Now()
	assert.NotEqual(t, model.TokenActive, f.record(t, rotated).State(now))
	assert.NotEqual(t, model.TokenActive, f.record(t, sessionB).State(now))
	assert.Equal(t, model.TokenActive, f.record(t, bobToken).State(now))

	records, err := f.store.ListByUserID(ctx, f.user.ID)
	require.NoError(t, err)
	for _, rec := range records {
		assert.NotNil(t, rec.RevokedAt, "record %d should be revoked", rec.ID)
	}

	// The successor of the reused token is dead too.
	result, err = f.svc.Rotate(ctx, httptest.NewRecorder(), rotated)
	require.NoError(t, err)
	assert.Equal(t, RotationReused, result.Status)
}

func TestRefreshTokenService_RotateInvalid(t *testing.T) {
	f := newRotationFixture(t, RefreshTokenConfig{})

	access, err := f.tokens.Issue(f.user, model.TokenTypeAccess)
	require.NoError(t, err)
	unstored, err := f.tokens.Issue(f.user, model.TokenTypeRefresh)
	require.NoError(t, err)
	ghost, err := f.tokens.Issue(&model.User{ID: 99, Username: "ghost"}, model.TokenTypeRefresh)
	require.NoError(t, err)

	active := f.login(t)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"access token": access,
		"not in store": unstored,
		"unknown user": ghost,
		"empty":        "",
	}
	for name, presented := range tests {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			result, err := f.svc.Rotate(context.Background(), rr, presented)
			require.NoError(t, err)
			assert.Equal(t, RotationInvalid, result.Status)

			cleared := responseCookie(rr, "refresh_token")
			require.NotNil(t, cleared)
			assert.Empty(t, cleared.Value)
		})
	}

	// Invalid tokens never trigger containment.
	assert.Equal(t, model.TokenActive, f.record(t, active).State(f.clock.Now()))
}

func TestRefreshTokenService_RotateExpiredRecord(t *testing.T) {
	// The stored record expires long before the JWT does.
	f := newRotationFixture(t, RefreshTokenConfig{TTL: time.Hour})
	raw := f.login(t)
	sibling := f.login(t)

	f.clock.Advance(2 * time.Hour)

	rr := httptest.NewRecorder()
	result, err := f.svc.Rotate(context.Background(), rr, raw)
	require.NoError(t, err)
	assert.Equal(t, RotationInvalid, result.Status)

	rec := f.record(t, raw)
	assert.NotNil(t, rec.RevokedAt)
	assert.Nil(t, rec.ReplacedBy)

	// Only the expired record is touched.
	assert.Nil(t, f.record(t, sibling).RevokedAt)
}

func TestRefreshTokenService_ConcurrentRotationSingleWinner(t *testing.T) {
	f := newRotationFixture(t, RefreshTokenConfig{})
	raw := f.login(t)

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[RotationStatus]int{}
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.Rotate(context.Background(), httptest.NewRecorder(), raw)
			assert.NoError(t, err)
			mu.Lock()
			statuses[result.Status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, statuses[RotationOK])
	assert.Equal(t, attempts-1, statuses[RotationReused])
}

func TestRefreshTokenService_RevokeIfPresent(t *testing.T) {
	f := newRotationFixture(t, RefreshTokenConfig{})
	raw := f.login(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: raw})

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		require.NoError(t, f.svc.RevokeIfPresent(ctx, rr, req))

		cleared := responseCookie(rr, "refresh_token")
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		assert.Equal(t, model.TokenRevoked, f.record(t, raw).State(f.clock.Now()))
	}

	t.Run("no cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		require.NoError(t, f.svc.RevokeIfPresent(ctx, rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil)))
		assert.NotNil(t, responseCookie(rr, "refresh_token"))
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "unknown"})
		assert.NoError(t, f.svc.RevokeIfPresent(ctx, httptest.NewRecorder(), req))
	})
}

func newPostgresRotation(t *testing.T) (*RefreshTokenService, sqlmock.Sqlmock, *model.User) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := repository.NewMemoryUserRepository()
	user := &model.User{Username: "alice", Email: "alice@example.com", Password: "hash"}
	require.NoError(t, users.CreateUser(context.Background(), user))

	svc := NewRefreshTokenService(repository.NewTokenRepository(db), users, newTestTokenService(t, nil), newTestCookieService(), RefreshTokenConfig{Pepper: "pepper"})
	return svc, mock, user
}

func TestRefreshTokenService_RotatePostgres(t *testing.T) {
	svc, mock, user := newPostgresRotation(t)
	raw, err := svc.tokens.Issue(user, model.TokenTypeRefresh)
	require.NoError(t, err)

	issued := time.Now().Add(-time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "issued_at", "expires_at", "revoked_at", "replaced_by"}).
		AddRow(1, user.ID, svc.HashToken(raw), issued, issued.Add(time.Hour), nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM refresh_tokens WHERE token_hash = \$1 FOR UPDATE`).
		WithArgs(svc.HashToken(raw)).
		WillReturnRows(rows)
	mock.ExpectQuery(`INSERT INTO refresh_tokens`).
		WithArgs(user.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at = \$1, replaced_by = \$2 WHERE id = \$3`).
		WithArgs(sqlmock.AnyArg(), int64(2), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rr := httptest.NewRecorder()
	result, err := svc.Rotate(context.Background(), rr, raw)
	require.NoError(t, err)
	assert.Equal(t, RotationOK, result.Status)
	assert.NotNil(t, responseCookie(rr, "refresh_token"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenService_RotatePostgresReuse(t *testing.T) {
	svc, mock, user := newPostgresRotation(t)
	raw, err := svc.tokens.Issue(user, model.TokenTypeRefresh)
	require.NoError(t, err)

	issued := time.Now().Add(-time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "issued_at", "expires_at", "revoked_at", "replaced_by"}).
		AddRow(1, user.ID, svc.HashToken(raw), issued, issued.Add(time.Hour), issued, 2)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(svc.HashToken(raw)).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at = \$2 WHERE user_id = \$1 AND revoked_at IS NULL`).
		WithArgs(user.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	result, err := svc.Rotate(context.Background(), httptest.NewRecorder(), raw)
	require.NoError(t, err)
	assert.Equal(t, RotationReused, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenService_RotateStorageErrorKeepsCookie(t *testing.T) {
	svc, mock, user := newPostgresRotation(t)
	raw, err := svc.tokens.Issue(user, model.TokenTypeRefresh)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	rr := httptest.NewRecorder()
	_, err = svc.Rotate(context.Background(), rr, raw)
	assert.Error(t, err)
	assert.Empty(t, rr.Result().Cookies(), "a storage failure must not touch the client's cookie")
	assert.NoError(t, mock.ExpectationsWereMet())
}
