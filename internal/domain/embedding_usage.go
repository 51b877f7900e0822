package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage for a single request.
// The handler stores a pointer in the context, the embedding chain adds to it,
// and the handler reports the total in a response header.
type EmbeddingUsage struct {
	TotalTokens int
	Used        bool // embedding was requested, even if served from cache
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector from ctx, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. Safe on a nil receiver.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}
