package chi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/domain/search/request"
)

// Search handles POST /search: semantic text and/or an exact filter, limited to n_results.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	where := filter.MatchAll()
	if len(req.Where) > 0 && !bytes.Equal(req.Where, []byte("null")) {
		expr, err := filter.ParseJSON(req.Where)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		where = expr
	}
	criteria, err := request.NewCriteria(req.Query, where)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	n := request.DefaultLimit
	if req.NResults != nil {
		n = *req.NResults
	}
	if n < 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "n_results must be >= 0")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	docs, err := s.query.Query(ctx, criteria, n)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, documentList(docs))
}

// AdvancedQuery handles POST /query.
func (s *Server) AdvancedQuery(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	q, err := request.ParseAdvanced(data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	docs, err := s.query.AdvancedQuery(ctx, q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, documentList(docs))
}

// Aggregate handles POST /aggregate: a JSON array of pipeline stages.
func (s *Server) Aggregate(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	docs, err := s.query.Aggregate(ctx, data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, documentList(docs))
}

// Count handles POST /count. The body is free-form criteria.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	criteria, ok := s.readCriteria(w, r)
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	n, err := s.query.Count(ctx, criteria)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// GroupBy handles POST /group/{field}. The body is free-form criteria.
func (s *Server) GroupBy(w http.ResponseWriter, r *http.Request) {
	field, err := url.PathUnescape(chi.URLParam(r, "field"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid field: "+err.Error())
		return
	}
	criteria, ok := s.readCriteria(w, r)
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	buckets, err := s.query.GroupBy(ctx, field, criteria)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, GroupResponse{Field: field, Buckets: buckets})
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.query.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) readCriteria(w http.ResponseWriter, r *http.Request) (request.Criteria, bool) {
	data, ok := readBody(w, r)
	if !ok {
		return request.Criteria{}, false
	}
	criteria, err := request.ParseCriteria(data)
	if err != nil {
		s.handleDomainError(w, err)
		return request.Criteria{}, false
	}
	return criteria, true
}
