package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"socialnet/auth"
	"socialnet/domain"
	"socialnet/errs"
)

// registerShareRoutes is a helper for registering all Share routes.
func (s *Server) registerShareRoutes(r *mux.Router) {
	r.HandleFunc("/posts/{id:[0-9]+}/share", s.requireAuth(s.handleCreateShare)).Methods("POST")
	r.HandleFunc("/posts/{id:[0-9]+}/share", s.requireAuth(s.handleDeleteShare)).Methods("DELETE")
}

// handleCreateShare handles the route "POST /api/posts/:id/share".
func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	share := &domain.Share{UserID: auth.UserID(r.Context()), PostID: id}
	if err := s.shs.Create(r.Context(), share); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeSuccess(w, r, "Post shared.")
}

// handleDeleteShare handles the route "DELETE /api/posts/:id/share".
func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	share := &domain.Share{UserID: auth.UserID(r.Context()), PostID: id}
	if err := s.shs.Delete(r.Context(), share); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeSuccess(w, r, "Share removed.")
}
