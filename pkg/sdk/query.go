package exifdex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/domain/search/request"
)

// Search returns up to n documents: nearest first for semantic criteria, by source path
// otherwise. Criteria with neither part return nothing.
func (c *Client) Search(ctx context.Context, crit Criteria, n int) (docs []Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, len(docs), err) }()

	rc, err := toCriteria(crit)
	if err != nil {
		return nil, err
	}
	out, err := c.queries.Query(ctx, rc, n)
	if err != nil {
		return nil, err
	}
	return fromDocuments(out), nil
}

// Query runs an advanced query.
func (c *Client) Query(ctx context.Context, q AdvancedQuery) (docs []Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, len(docs), err) }()

	rc, err := toCriteria(q.Criteria)
	if err != nil {
		return nil, err
	}
	adv, err := request.NewAdvanced(rc, q.SortBy, q.SortOrder, q.Limit, q.Offset, q.Projection)
	if err != nil {
		return nil, err
	}
	out, err := c.queries.AdvancedQuery(ctx, adv)
	if err != nil {
		return nil, err
	}
	return fromDocuments(out), nil
}

// Aggregate runs a pipeline of stages.
func (c *Client) Aggregate(ctx context.Context, stages ...Stage) ([]Document, error) {
	if stages == nil {
		stages = []Stage{}
	}
	data, err := json.Marshal(stages)
	if err != nil {
		return nil, fmt.Errorf("%w: encode pipeline: %v", domain.ErrMalformedPipeline, err)
	}
	return c.AggregateJSON(ctx, data)
}

// AggregateJSON runs a pipeline given as a JSON array of stages.
func (c *Client) AggregateJSON(ctx context.Context, pipeline []byte) (docs []Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("aggregate", start, len(docs), err) }()

	out, err := c.queries.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return fromDocuments(out), nil
}

// Count returns how many documents match.
func (c *Client) Count(ctx context.Context, crit Criteria) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("count", start, -1, err) }()

	rc, err := toCriteria(crit)
	if err != nil {
		return 0, err
	}
	return c.queries.Count(ctx, rc)
}

// GroupBy counts matching documents per value of field; documents without it fall into
// the "Unknown" bucket.
func (c *Client) GroupBy(ctx context.Context, field string, crit Criteria) (buckets []Bucket, err error) {
	start := time.Now()
	defer func() { c.obs.observe("group_by", start, -1, err) }()

	rc, err := toCriteria(crit)
	if err != nil {
		return nil, err
	}
	return c.queries.GroupBy(ctx, field, rc)
}

// Stats summarizes the collection.
func (c *Client) Stats(ctx context.Context) (st Stats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("stats", start, -1, err) }()

	return c.queries.Stats(ctx)
}

func toCriteria(c Criteria) (request.Criteria, error) {
	where := filter.MatchAll()
	if len(c.Where) > 0 {
		expr, err := filter.Parse(c.Where)
		if err != nil {
			return request.Criteria{}, err
		}
		where = expr
	}
	return request.NewCriteria(c.Query, where)
}
