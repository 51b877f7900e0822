package exifdex

import (
	"context"
	"time"
)

// KeyCategories lists the metadata namespaces ("EXIF", "XMP", ...). Fields without a
// namespace are listed under "General".
func (c *Client) KeyCategories(ctx context.Context) (cats []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("key_categories", start, -1, err) }()

	return c.keys.Categories(ctx)
}

// Keys lists the field names of one category.
func (c *Client) Keys(ctx context.Context, category string) (keys []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("keys", start, -1, err) }()

	return c.keys.KeysIn(ctx, category)
}

// SimilarKeys suggests up to n known field names close to name; n <= 0 means 5.
func (c *Client) SimilarKeys(ctx context.Context, name string, n int) (keys []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("similar_keys", start, -1, err) }()

	return c.keys.Similar(ctx, name, n)
}

// RefreshKeys rescans the collection for field names. Key listings are cached until
// the next refresh or Clear.
func (c *Client) RefreshKeys(ctx context.Context) (keys []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("refresh_keys", start, -1, err) }()

	return c.keys.Refresh(ctx)
}
