package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/exifdex/internal/db"
)

// SearchKNN runs a KNN vector search via FT.SEARCH, nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("vector is required")
	case q.K <= 0:
		return nil, errors.New("k must be positive")
	}

	knn := fmt.Sprintf("[KNN %d @vector $BLOB", q.K)
	params := []string{"BLOB", vectorToBytes(q.Vector)}
	if q.EFRuntime > 0 {
		knn += " EF_RUNTIME $EF"
		params = append(params, "EF", strconv.Itoa(q.EFRuntime))
	}
	knn += "]"

	pre := "*"
	if q.Filter != "" {
		pre = "(" + q.Filter + ")"
	}

	args := []string{q.IndexName, pre + "=>" + knn}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args, "SORTBY", db.VectorScoreField, "ASC")
	args = append(args, "PARAMS", strconv.Itoa(len(params)))
	args = append(args, params...)
	// FT.SEARCH returns 10 hits unless told otherwise, regardless of K.
	args = append(args, "LIMIT", "0", strconv.Itoa(q.K), "DIALECT", "2")

	return s.search(ctx, args)
}

// SearchList pages through the documents matching q.Query.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	query := q.Query
	if query == "" {
		query = "*"
	}

	args := []string{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	if q.SortBy != "" {
		args = append(args, "SORTBY", q.SortBy, "ASC")
	}
	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit), "DIALECT", "2")

	return s.search(ctx, args)
}

// SearchCount returns how many documents match query without fetching any.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	res, err := s.search(ctx, []string{index, query, "LIMIT", "0", "0", "DIALECT", "2"})
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

func (s *Store) search(ctx context.Context, args []string) (*db.SearchResult, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseSearchReply(raw)
}

// parseSearchReply decodes the RESP2 reply [total, key1, fields1, key2, fields2, ...].
// A __vector_score field is lifted into SearchEntry.Score.
func parseSearchReply(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	res := &db.SearchResult{Total: int(total)}
	if len(raw) > 1 {
		res.Entries = make([]db.SearchEntry, 0, (len(raw)-1)/2)
	}
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(fields)}
		if score, ok := entry.Fields[db.VectorScoreField]; ok {
			if d, err := strconv.ParseFloat(score, 64); err == nil {
				entry.Score = d
			}
			delete(entry.Fields, db.VectorScoreField)
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// vectorToBytes encodes v as the little-endian FLOAT32 blob FT.SEARCH expects.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
