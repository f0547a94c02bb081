package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"socialnet/auth"
	"socialnet/domain"
	"socialnet/errs"
)

// registerLikeRoutes is a helper for registering all Like routes.
func (s *Server) registerLikeRoutes(r *mux.Router) {
	// Like a post.
	r.HandleFunc("/posts/{id:[0-9]+}/like", s.requireAuth(s.handleCreateLike)).Methods("POST")

	// Unlike a post.
	r.HandleFunc("/posts/{id:[0-9]+}/like", s.requireAuth(s.handleDeleteLike)).Methods("DELETE")
}

// handleCreateLike handles the route "POST /api/posts/:id/like".
// It reads the post ID from the url and creates a new Like record in the database.
func (s *Server) handleCreateLike(w http.ResponseWriter, r *http.Request) {
	// Parse the post ID from the url.
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Create a new Like database record for the authed user.
	like := &domain.Like{UserID: auth.UserID(r.Context()), PostID: id}
	if err := s.ls.Create(r.Context(), like); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeSuccess(w, r, "")
}

// handleDeleteLike handles the route "DELETE /api/posts/:id/like".
// It removes the authed user's like of the post.
func (s *Server) handleDeleteLike(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	like := &domain.Like{UserID: auth.UserID(r.Context()), PostID: id}
	if err := s.ls.Delete(r.Context(), like); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeSuccess(w, r, "")
}
