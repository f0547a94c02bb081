package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"socialnet/auth"
	"socialnet/crud"
	"socialnet/domain"
	"socialnet/errs"
)

func (s *Server) registerSearchRoutes(r *mux.Router) {
	r.HandleFunc("/search", s.requireAuth(s.handleSearch)).Methods("GET")
	r.HandleFunc("/trending-topics", s.requireAuth(s.handleTrending)).Methods("GET")
}

// handleSearch handles the route "GET /api/search?q&filter".
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.search.Search(r.Context(), auth.UserID(r.Context()), q.Get("q"), q.Get("filter"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleTrending handles the route "GET /api/trending-topics".
// It counts the topics of the posts published during the trending window.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	topics, err := s.search.Trending(r.Context(), s.now().Add(-crud.TrendingWindow))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if topics == nil {
		topics = []domain.Topic{}
	}
	writeJSON(w, r, http.StatusOK, topics)
}
