package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/exifdex/internal/domain"
	dombatch "github.com/kailas-cloud/exifdex/internal/domain/batch"
)

// UpsertFiles handles POST /files: a JSON array of extracted metadata records.
func (s *Server) UpsertFiles(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: expected an array of objects: "+err.Error())
		return
	}
	if len(records) > maxIngestRecords {
		writeError(w, http.StatusBadRequest, CodeBadRequest,
			fmt.Sprintf("records count must be at most %d", maxIngestRecords))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.ingest.Upsert(ctx, records)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, ingestResponse(report))
}

// ListFileIDs handles GET /files/ids.
func (s *Server) ListFileIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ingest.ExistingIDs(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, IDListResponse{IDs: ids, Total: len(ids)})
}

// ClearFiles handles DELETE /files.
func (s *Server) ClearFiles(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.Clear(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ingestResponse(report dombatch.Report) IngestResponse {
	items := make([]IngestItem, len(report.Results))
	for i, res := range report.Results {
		items[i] = IngestItem{
			Index:  res.Index(),
			ID:     res.ID(),
			Status: string(res.Status()),
		}
		if res.Err() != nil {
			items[i].Error = &ErrorResponse{Code: CodeBadRequest, Message: res.Err().Error()}
		}
	}
	return IngestResponse{
		Upserted: report.Count(dombatch.StatusOK),
		Skipped:  report.Count(dombatch.StatusSkipped),
		Items:    items,
	}
}
