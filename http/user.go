package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"socialnet/auth"
	"socialnet/domain"
	"socialnet/errs"
)

func (s *Server) registerUserRoutes(r *mux.Router) {
	// The authed user's own profile.
	r.HandleFunc("/user", s.requireAuth(s.handleCurrentUser)).Methods("GET")
	r.HandleFunc("/user", s.requireAuth(s.handleUpdateUser)).Methods("PUT")

	// The posts the authed user has reshared.
	r.HandleFunc("/user/shares", s.requireAuth(s.handleUserShares)).Methods("GET")

	// Profiles of other users.
	r.HandleFunc("/user/{id:[0-9]+}", s.handleGetProfile).Methods("GET")
	r.HandleFunc("/user/{id:[0-9]+}/stats", s.handleUserStats).Methods("GET")
	r.HandleFunc("/users", s.handleListUsers).Methods("GET")
}

// updateUserRequest is the JSON form of PUT /api/user. Avatar is a data URI.
type updateUserRequest struct {
	FullName     *string `json:"fullName"`
	Bio          *string `json:"bio"`
	Avatar       *string `json:"avatar"`
	RemoveAvatar bool    `json:"removeAvatar"`
}

// handleCurrentUser handles the route "GET /api/user".
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	profile, err := s.us.Profile(r.Context(), userID, userID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleUpdateUser handles the route "PUT /api/user".
// It accepts either a multipart form with an optional "avatar" file, or a JSON body
// carrying the avatar as a data URI. Any new avatar is normalized before it is stored.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var (
		upd domain.UserUpdate
		err error
	)
	if isMultipart(r) {
		upd, err = s.userUpdateFromForm(w, r)
	} else {
		upd, err = s.userUpdateFromJSON(w, r)
	}
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Update the user record in the database.
	if _, err := s.us.Update(r.Context(), auth.UserID(r.Context()), upd); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeSuccess(w, r, "")
}

func (s *Server) userUpdateFromForm(w http.ResponseWriter, r *http.Request) (domain.UserUpdate, error) {
	var upd domain.UserUpdate
	if err := parseMultipart(w, r); err != nil {
		return upd, err
	}
	if v, ok := formValue(r, "fullName"); ok {
		upd.FullName = &v
	}
	if v, ok := formValue(r, "bio"); ok {
		upd.Bio = &v
	}
	if v, _ := formValue(r, "removeAvatar"); v == "true" {
		upd.RemoveAvatar = true
		return upd, nil
	}
	avatar, err := s.formImage(r, "avatar", s.avatarBounds)
	if err != nil {
		return upd, err
	}
	if avatar != "" {
		upd.AvatarData = &avatar
	}
	return upd, nil
}

func (s *Server) userUpdateFromJSON(w http.ResponseWriter, r *http.Request) (domain.UserUpdate, error) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return domain.UserUpdate{}, err
	}
	upd := domain.UserUpdate{
		FullName:     req.FullName,
		Bio:          req.Bio,
		RemoveAvatar: req.RemoveAvatar,
	}
	if !req.RemoveAvatar && req.Avatar != nil && *req.Avatar != "" {
		avatar, err := s.inlineImage(r.Context(), *req.Avatar, s.avatarBounds)
		if err != nil {
			return upd, err
		}
		upd.AvatarData = &avatar
	}
	return upd, nil
}

// handleGetProfile handles the route "GET /api/user/:id".
// It returns the user with their counters and whether the viewer follows them.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	// Parse the User ID from the url.
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Fetch the profile from the database.
	profile, err := s.us.Profile(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleUserStats handles the route "GET /api/user/:id/stats".
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	stats, err := s.us.Stats(r.Context(), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// handleListUsers handles the route "GET /api/users".
// It lists every user except the viewer.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.us.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if users == nil {
		users = []domain.Profile{}
	}
	writeJSON(w, r, http.StatusOK, users)
}

// handleUserShares handles the route "GET /api/user/shares".
// It returns the posts the authed user has reshared, newest share first.
func (s *Server) handleUserShares(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	items, err := s.feed.SharedBy(r.Context(), auth.UserID(r.Context()), page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.FeedItem{}
	}
	writeJSON(w, r, http.StatusOK, items)
}
