// Package redis implements the db.Store facade on rueidis for Redis 8+, which ships the
// Search (FT.*) and JSON modules built in.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/exifdex/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	readyInitialBackoff = 100 * time.Millisecond
	readyMaxBackoff     = 2 * time.Second
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements db.Store via rueidis.
type Store struct {
	client rueidis.Client
}

// NewStore creates a Redis store. The connection is dialed lazily; use WaitForReady to
// block until the server answers.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH replies are parsed in RESP2 array form
	})
	if err != nil {
		return nil, fmt.Errorf("redis: create client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with exponential backoff until the server answers, then checks
// that the Search module is loaded. A server without it fails fast with
// db.ErrSearchUnavailable instead of timing out.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := readyInitialBackoff
	for {
		err := s.Ping(ctx)
		if err == nil {
			return s.checkSearch(ctx)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w (last error: %v)", ctx.Err(), err)
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, readyMaxBackoff)
	}
}

func (s *Store) checkSearch(ctx context.Context) error {
	err := s.do(ctx, s.b().Arbitrary("FT._LIST").Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "unknown command"):
		return db.ErrSearchUnavailable
	default:
		return &db.Error{Op: db.OpIndexList, Err: err}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a server error reply containing substr, ignoring case.
// Transport errors never match.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
