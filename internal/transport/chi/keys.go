package chi

import (
	"net/http"
	"strconv"
)

// Keys handles GET /keys. Without a category it lists the categories; with one it lists
// that category's keys. refresh=true rescans the collection first.
func (s *Server) Keys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("refresh"); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "refresh must be a boolean")
			return
		}
		if refresh {
			if _, err := s.keys.Refresh(r.Context()); err != nil {
				s.handleDomainError(w, err)
				return
			}
		}
	}

	category := q.Get("category")
	if category == "" {
		categories, err := s.keys.Categories(r.Context())
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CategoriesResponse{Categories: nonNil(categories)})
		return
	}

	keys, err := s.keys.KeysIn(r.Context(), category)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, KeysResponse{Category: category, Keys: nonNil(keys)})
}

// SimilarKeys handles GET /keys/similar?name=&n=.
func (s *Server) SimilarKeys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "name is required")
		return
	}

	var n int
	if raw := q.Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "n must be a positive integer")
			return
		}
		n = v
	}

	matches, err := s.keys.Similar(r.Context(), name, n)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SimilarKeysResponse{Name: name, Matches: nonNil(matches)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
