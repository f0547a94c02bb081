package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"socialnet/auth"
	"socialnet/domain"
	"socialnet/errs"
)

func (s *Server) registerPostRoutes(r *mux.Router) {
	// The feed, optionally narrowed down to one author.
	r.HandleFunc("/posts", s.handleFeed).Methods("GET")

	// Publish a post.
	r.HandleFunc("/posts", s.requireAuth(s.handleCreatePost)).Methods("POST")

	// A single post.
	r.HandleFunc("/posts/{id:[0-9]+}", s.handleGetPost).Methods("GET")

	// Delete one of the authed user's posts.
	r.HandleFunc("/posts/{id:[0-9]+}", s.requireAuth(s.handleDeletePost)).Methods("DELETE")
}

// createPostRequest is the JSON form of POST /api/posts. Image is a data URI.
type createPostRequest struct {
	Content string `json:"content"`
	Image   string `json:"image"`
}

// createPostResponse is returned once a post is published.
type createPostResponse struct {
	Success bool `json:"success"`
	PostID  int  `json:"postId"`
}

// handleCreatePost handles the route "POST /api/posts".
// It takes a multipart form with "content" and an optional "image" file. JSON bodies
// with the image as a data URI are accepted as well.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	np := domain.NewPost{UserID: auth.UserID(r.Context())}

	// Parse the content and normalize the image, if one was sent.
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			errs.ReturnError(w, r, err)
			return
		}
		np.Content, _ = formValue(r, "content")
		image, err := s.formImage(r, "image", s.postBounds)
		if err != nil {
			errs.ReturnError(w, r, err)
			return
		}
		np.ImageData = image
	} else {
		var req createPostRequest
		if err := decodeJSON(w, r, &req); err != nil {
			errs.ReturnError(w, r, err)
			return
		}
		np.Content = req.Content
		if req.Image != "" {
			image, err := s.inlineImage(r.Context(), req.Image, s.postBounds)
			if err != nil {
				errs.ReturnError(w, r, err)
				return
			}
			np.ImageData = image
		}
	}

	// Create a new Post database record.
	post, err := s.ps.Create(r.Context(), np)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, createPostResponse{Success: true, PostID: post.ID})
}

// handleFeed handles the route "GET /api/posts?page&limit&user_id".
// Without user_id it returns the global feed along with the viewer's reshares.
// With user_id it returns that user's posts and reshares.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	authorID, err := queryInt(r.URL.Query(), "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	items, err := s.feed.Feed(r.Context(), domain.FeedFilter{
		ViewerID: auth.UserID(r.Context()),
		AuthorID: authorID,
		Page:     page,
	})
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.FeedItem{}
	}
	writeJSON(w, r, http.StatusOK, items)
}

// handleGetPost handles the route "GET /api/posts/:id".
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	post, err := s.ps.ByID(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

// handleDeletePost handles the route "DELETE /api/posts/:id".
// Only the owner may delete a post. Its likes, comments and reshares go with it.
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	// Parse the post ID from the url.
	id, err := pathID(r, "id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Delete the post. Someone else's post looks just like a missing one.
	if err := s.ps.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeSuccess(w, r, "Post deleted.")
}
