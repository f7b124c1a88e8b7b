package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// fakeUpstream answers /token and /validate_token for user "admin" and
// counts the validations.
func fakeUpstream(t *testing.T, validations *atomic.Int32) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()

	r := gin.New()
	r.POST("/token", func(c *gin.Context) {
		if c.PostForm("username") != "admin" || c.PostForm("password") != "secret" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": "tok-admin"})
	})
	r.GET("/validate_token", func(c *gin.Context) {
		validations.Add(1)
		if c.GetHeader("Authorization") != "Bearer tok-admin" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
			return
		}
		c.JSON(http.StatusOK, models.Session{
			User:    models.User{ID: 1, Username: "admin", Role: models.RoleAdmin},
			WSToken: "ws-admin",
		})
	})
	r.GET("/tables", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"q": c.Query("q")})
	})
	r.DELETE("/tables/:id", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"detail": "Table has linked records"})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestCleanPath(t *testing.T) {
	for _, p := range []string{"/orders", "/orders/1/currencies", "/reports/sales"} {
		got, err := CleanPath(p)
		assert.NoError(t, err, p)
		assert.Equal(t, p, got)
	}
	for _, p := range []string{"", "orders", "//evil.com/x", "/a/../b", "http://evil.com", `/a\b`} {
		_, err := CleanPath(p)
		assert.ErrorIs(t, err, ErrBadPath, p)
	}
}

func TestBackendDo(t *testing.T) {
	var n atomic.Int32
	srv := fakeUpstream(t, &n)
	bs := NewBackendService(srv.URL, time.Second)
	ctx := context.Background()

	resp, err := bs.Do(ctx, BackendRequest{Method: http.MethodGet, Path: "/tables", Query: map[string][]string{"q": {"mesa"}}})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"q":"mesa"}`, string(resp.Body))

	resp, err = bs.Do(ctx, BackendRequest{Method: http.MethodDelete, Path: "/tables/1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, "Table has linked records", MessageOf(DecodeBody(resp.Body)))

	_, err = bs.Do(ctx, BackendRequest{Method: http.MethodGet, Path: "//evil.com"})
	assert.ErrorIs(t, err, ErrBadPath)

	_, err = NewBackendService("http://127.0.0.1:1", time.Second).Do(ctx, BackendRequest{Method: http.MethodGet, Path: "/tables"})
	assert.Error(t, err)
}

func TestIssueToken(t *testing.T) {
	var n atomic.Int32
	bs := NewBackendService(fakeUpstream(t, &n).URL, time.Second)

	token, err := bs.IssueToken(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-admin", token)

	_, err = bs.IssueToken(context.Background(), "admin", "bad")
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.Status)
	assert.Equal(t, "Incorrect username or password", upstreamErr.Message())
}

func TestAuthServiceCachesSessions(t *testing.T) {
	var validations atomic.Int32
	bs := NewBackendService(fakeUpstream(t, &validations).URL, time.Second)
	auth := NewAuthService(bs, NewMemorySessionStore(time.Minute))
	ctx := context.Background()

	token, session, err := auth.Login(ctx, "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ws-admin", session.WSToken)
	assert.EqualValues(t, 1, validations.Load())

	s, err := auth.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", s.User.Username)
	assert.EqualValues(t, 1, validations.Load(), "resolved from the store")

	_, err = auth.Validate(ctx, token)
	require.NoError(t, err)
	assert.EqualValues(t, 2, validations.Load())

	auth.Forget(ctx, token)
	_, err = auth.Resolve(ctx, token)
	require.NoError(t, err)
	assert.EqualValues(t, 3, validations.Load())

	_, err = auth.Resolve(ctx, "stale")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMemorySessionStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "tok", &models.Session{WSToken: "ws"}))
	s, ok, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ws", s.WSToken)

	now = now.Add(2 * time.Minute)
	_, ok, _ = store.Get(ctx, "tok")
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "tok", &models.Session{}))
	require.NoError(t, store.Delete(ctx, "tok"))
	_, ok, _ = store.Get(ctx, "tok")
	assert.False(t, ok)
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisSessionStore(rdb, time.Minute)
	require.NoError(t, store.Set(ctx, "tok-test", &models.Session{WSToken: "ws"}))
	s, ok, err := store.Get(ctx, "tok-test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ws", s.WSToken)
	assert.Equal(t, time.Minute, mr.TTL(sessionKey("tok-test")))

	require.NoError(t, store.Delete(ctx, "tok-test"))
	_, ok, err = store.Get(ctx, "tok-test")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "tok-old", &models.Session{}))
	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "tok-old")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mr.Set(sessionKey("tok-bad"), "not json"))
	_, _, err = store.Get(ctx, "tok-bad")
	assert.Error(t, err)
}

func TestAuthServiceOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var validations atomic.Int32
	bs := NewBackendService(fakeUpstream(t, &validations).URL, time.Second)
	ctx := context.Background()

	token, _, err := NewAuthService(bs, NewRedisSessionStore(rdb, time.Minute)).Login(ctx, "admin", "secret")
	require.NoError(t, err)

	// A second instance sharing the same Redis resolves without validating.
	other := NewAuthService(bs, NewRedisSessionStore(rdb, time.Minute))
	s, err := other.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ws-admin", s.WSToken)
	assert.EqualValues(t, 1, validations.Load())

	mr.FlushAll()
	_, err = other.Resolve(ctx, token)
	require.NoError(t, err)
	assert.EqualValues(t, 2, validations.Load())
	assert.True(t, mr.Exists(sessionKey(token)))
}
