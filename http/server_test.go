package http

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"socialnet/crud"
	"socialnet/database"
	"socialnet/domain"
)

func setupTestServer(t *testing.T, cfg Config) (*Server, *crud.Services) {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	}, true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.AutoMigrate())

	svcs, err := crud.NewServices(db.Gorm,
		crud.WithImage(t.TempDir(), crud.DefaultJPEGQuality, domain.PostBounds, domain.AvatarBounds),
		crud.WithUser("test-pepper"),
		crud.WithSession("test-hmac-key", time.Hour),
		crud.WithPost(),
		crud.WithLike(),
		crud.WithShare(),
		crud.WithFollow(),
		crud.WithComment(),
		crud.WithFeed(),
		crud.WithSearch(),
	)
	require.NoError(t, err)
	if cfg.AuthRate == 0 {
		cfg.AuthRate = rate.Inf
	}
	return NewServer(svcs, cfg), svcs
}

// client sends requests straight to the server and keeps the session cookie around.
type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newClient(t *testing.T, srv *Server) *client {
	return &client{t: t, srv: srv}
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.srv.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			if ck.MaxAge < 0 {
				c.cookie = nil
			} else {
				c.cookie = ck
			}
		}
	}
	return rec
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *client) multipart(method, path string, fields map[string]string, fileField string, file []byte) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(c.t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile(fileField, "upload.png")
		require.NoError(c.t, err)
		_, err = fw.Write(file)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

func (c *client) register(username string) *domain.User {
	c.t.Helper()
	rec := c.do("POST", "/api/register", map[string]string{
		"username": username,
		"email":    username + "@x.com",
		"password": "secret1",
		"fullName": username,
	})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		User domain.User `json:"user"`
	}
	decode(c.t, rec, &res)
	return &res.User
}

func (c *client) post(content string) int {
	c.t.Helper()
	rec := c.multipart("POST", "/api/posts", map[string]string{"content": content}, "", nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var res createPostResponse
	decode(c.t, rec, &res)
	require.NotZero(c.t, res.PostID)
	return res.PostID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var res struct {
		Error string `json:"error"`
	}
	decode(t, rec, &res)
	return res.Error
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: 20, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestServer_Health(t *testing.T) {
	srv, _ := setupTestServer(t, Config{})
	rec := newClient(t, srv).do("GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequestIDIsEchoed(t *testing.T) {
	srv, _ := setupTestServer(t, Config{})
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_UnknownRoute(t *testing.T) {
	srv, _ := setupTestServer(t, Config{})
	rec := newClient(t, srv).do("GET", "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found.", errorMessage(t, rec))
}

func TestServer_RecoversPanics(t *testing.T) {
	srv, _ := setupTestServer(t, Config{})
	srv.router.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := newClient(t, srv).do("GET", "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal error.", errorMessage(t, rec))
}
