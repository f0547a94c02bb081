package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"socialnet/auth"
	"socialnet/domain"
	"socialnet/errs"
)

func (s *Server) registerCommentRoutes(r *mux.Router) {
	r.HandleFunc("/posts/{id:[0-9]+}/comments", s.handleListComments).Methods("GET")
	r.HandleFunc("/posts/{id:[0-9]+}/comments", s.requireAuth(s.handleCreateComment)).Methods("POST")
}

type createCommentRequest struct {
	Content string `json:"content"`
}

type createCommentResponse struct {
	Success   bool `json:"success"`
	CommentID int  `json:"commentId"`
}

// handleCreateComment handles the route "POST /api/posts/:id/comments".
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	// Parse the post ID from the url.
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Parse the request's json body.
	var req createCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Create a new Comment database record, bumping the post's comment counter.
	comment := &domain.Comment{UserID: auth.UserID(r.Context()), PostID: id, Content: req.Content}
	if err := s.cs.Create(r.Context(), comment); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, createCommentResponse{Success: true, CommentID: comment.ID})
}

// handleListComments handles the route "GET /api/posts/:id/comments".
// Comments are returned oldest first.
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	comments, err := s.cs.ByPostID(r.Context(), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if comments == nil {
		comments = []domain.CommentView{}
	}
	writeJSON(w, r, http.StatusOK, comments)
}
