package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"socialnet/auth"
	"socialnet/domain"
	"socialnet/errs"
)

// registerFollowRoutes is a helper for registering all Follow routes.
func (s *Server) registerFollowRoutes(r *mux.Router) {
	// Follow a user.
	r.HandleFunc("/user/{id:[0-9]+}/follow", s.requireAuth(s.handleFollow)).Methods("POST")

	// Unfollow a user.
	r.HandleFunc("/user/{id:[0-9]+}/follow", s.requireAuth(s.handleUnfollow)).Methods("DELETE")

	// List both ends of a user's follow edges.
	r.HandleFunc("/user/{id:[0-9]+}/followers", s.handleFollowers).Methods("GET")
	r.HandleFunc("/user/{id:[0-9]+}/following", s.handleFollowing).Methods("GET")
}

// handleFollow handles the route "POST /api/user/:id/follow".
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	// Parse the followed user's ID from the url.
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Create a new Follow database record.
	follow := &domain.Follow{FollowerID: auth.UserID(r.Context()), FollowingID: id}
	if err := s.fs.Create(r.Context(), follow); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeSuccess(w, r, "")
}

// handleUnfollow handles the route "DELETE /api/user/:id/follow".
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	follow := &domain.Follow{FollowerID: auth.UserID(r.Context()), FollowingID: id}
	if err := s.fs.Delete(r.Context(), follow); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeSuccess(w, r, "")
}

// handleFollowers handles the route "GET /api/user/:id/followers".
func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	s.listEdges(w, r, s.fs.Followers)
}

// handleFollowing handles the route "GET /api/user/:id/following".
func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	s.listEdges(w, r, s.fs.Following)
}

type edgeLister func(ctx context.Context, viewerID, userID int, p domain.Page) ([]domain.Profile, error)

func (s *Server) listEdges(w http.ResponseWriter, r *http.Request, list edgeLister) {
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	users, err := list(r.Context(), auth.UserID(r.Context()), id, page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if users == nil {
		users = []domain.Profile{}
	}
	writeJSON(w, r, http.StatusOK, users)
}
