package exifdex

import (
	"context"
	"time"

	dombatch "github.com/kailas-cloud/exifdex/internal/domain/batch"
)

// Upsert stores metadata records keyed by their "SourceFile" field. Records without one
// are reported as skipped; when a path repeats, the last record wins.
func (c *Client) Upsert(ctx context.Context, records ...map[string]any) (rep UpsertReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("upsert", start, rep.Upserted, err) }()

	report, err := c.ingest.Upsert(ctx, records)
	if err != nil {
		return UpsertReport{}, err
	}

	rep.Upserted = report.Count(dombatch.StatusOK)
	for _, r := range report.Results {
		if r.Status() == dombatch.StatusSkipped {
			rep.Skipped = append(rep.Skipped, SkippedRecord{Index: r.Index(), ID: r.ID(), Reason: r.Err()})
		}
	}
	return rep, nil
}

// IDs returns every stored source path in lexical order, for incremental scans.
func (c *Client) IDs(ctx context.Context) (ids []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ids", start, len(ids), err) }()

	return c.ingest.ExistingIDs(ctx)
}

// Clear removes every document of the collection.
func (c *Client) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("clear", start, -1, err) }()

	return c.ingest.Clear(ctx)
}
