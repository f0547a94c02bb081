package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"socialnet/domain"
)

func TestAuth_RegisterLoginLogout(t *testing.T) {
	srv, _ := setupTestServer(t, Config{})
	c := newClient(t, srv)

	user := c.register("alice")
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@x.com", user.Email)
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)

	rec := c.do("GET", "/api/user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me domain.Profile
	decode(t, rec, &me)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "alice@x.com", me.Email)

	rec = c.do("POST", "/api/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Nil(t, c.cookie)
	assert.Equal(t, http.StatusUnauthorized, c.do("GET", "/api/user", nil).Code)

	// Login works with the username as well as with the email.
	for _, login := range []string{"alice", "alice@x.com"} {
		rec = c.do("POST", "/api/login", map[string]string{"username": login, "password": "secret1"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, http.StatusOK, c.do("GET", "/api/user", nil).Code)
	}
}

func TestAuth_LogoutInvalidatesServerSession(t *testing.T) {
	srv, _ := setupTestServer(t, Config{})
	c := newClient(t, srv)
	c.register("alice")
	stolen := c.cookie

	c.do("POST", "/api/logout", nil)

	replay := newClient(t, srv)
	replay.cookie = stolen
	assert.Equal(t, http.StatusUnauthorized, replay.do("GET", "/api/user", nil).Code)
}

func TestAuth_Failures(t *testing.T) {
	srv, _ := setupTestServer(t, Config{})
	c := newClient(t, srv)
	c.register("alice")

	other := newClient(t, srv)
	rec := other.do("POST", "/api/register", map[string]string{
		"username": "alice", "email": "other@x.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, errorMessage(t, rec))

	rec = other.do("POST", "/api/register", map[string]string{
		"username": "bob", "email": "bob@x.com", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = other.do("POST", "/api/login", map[string]string{"username": "alice", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = other.do("POST", "/api/login", map[string]string{"username": "nobody", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, other.cookie)

	rec = other.do("POST", "/api/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "anonymous logout still succeeds")
}

func TestAuth_ProtectedRoutesRequireSession(t *testing.T) {
	srv, _ := setupTestServer(t, Config{})
	anon := newClient(t, srv)
	for _, route := range []struct{ method, path string }{
		{"GET", "/api/user"},
		{"PUT", "/api/user"},
		{"GET", "/api/user/shares"},
		{"POST", "/api/user/1/follow"},
		{"POST", "/api/posts"},
		{"DELETE", "/api/posts/1"},
		{"POST", "/api/posts/1/like"},
		{"DELETE", "/api/posts/1/share"},
		{"POST", "/api/posts/1/comments"},
		{"GET", "/api/search?q=x"},
		{"GET", "/api/trending-topics"},
	} {
		rec := anon.do(route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestAuth_RateLimit(t *testing.T) {
	srv, _ := setupTestServer(t, Config{AuthRate: rate.Limit(0.001), AuthBurst: 2})
	c := newClient(t, srv)
	creds := map[string]string{"username": "nobody", "password": "secret1"}

	assert.Equal(t, http.StatusUnauthorized, c.do("POST", "/api/login", creds).Code)
	assert.Equal(t, http.StatusUnauthorized, c.do("POST", "/api/login", creds).Code)
	rec := c.do("POST", "/api/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, errorMessage(t, rec))
}
