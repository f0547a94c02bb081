package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"socialnet/domain"
	"socialnet/errs"
)

func (s *Server) registerAuthRoutes(r *mux.Router) {
	r.HandleFunc("/register", s.rateLimit(s.handleRegister)).Methods("POST")
	r.HandleFunc("/login", s.rateLimit(s.handleLogin)).Methods("POST")
	r.HandleFunc("/logout", s.handleLogout).Methods("POST")
}

// registerRequest is the body of POST /api/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// loginRequest is the body of POST /api/login. Username may also hold an email address.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse is returned by register and login.
type authResponse struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user"`
}

// handleRegister handles the route "POST /api/register".
// It creates a new user and signs them in right away.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	// Parse the request's json body.
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Create a new User database record (includes validation and password hashing).
	user := &domain.User{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}
	if err := s.us.Create(r.Context(), user); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Sign the new user in.
	if err := s.signIn(w, r.Context(), user.ID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Return the created user.
	writeJSON(w, r, http.StatusOK, authResponse{Success: true, User: user})
}

// handleLogin handles the route "POST /api/login".
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	// Parse the request's json body.
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Check the credentials.
	user, err := s.us.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Sign the user in.
	if err := s.signIn(w, r.Context(), user.ID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, authResponse{Success: true, User: user})
}

// handleLogout handles the route "POST /api/logout".
// It invalidates the server-side session, if there is one, and expires the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := s.ss.Delete(r.Context(), cookie.Value); err != nil && errs.ErrorCode(err) == errs.EINTERNAL {
			errs.ReturnError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeSuccess(w, r, "")
}

// signIn starts a new session for the user and hands its token to the client as a cookie.
func (s *Server) signIn(w http.ResponseWriter, ctx context.Context, userID int) error {
	token, err := s.ss.Create(ctx, userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.cfg.SessionTTL),
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
