package db

import "errors"

var (
	// ErrKeyNotFound is returned by KV reads of absent keys.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned when dropping an index that does not exist.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by FT.CREATE for a name already taken.
	ErrIndexExists = errors.New("db: index already exists")
	// ErrSearchUnavailable means the server answers but lacks the Search module (Redis < 8
	// without Redis Stack).
	ErrSearchUnavailable = errors.New("db: search module unavailable")
)

// Command names used as Error.Op.
const (
	OpGet         = "GET"
	OpSet         = "SET"
	OpDel         = "DEL"
	OpScan        = "SCAN"
	OpJSONSet     = "JSON.SET"
	OpJSONMGet    = "JSON.MGET"
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpIndexList   = "FT._LIST"
	OpSearch      = "FT.SEARCH"
)

// Error tags a driver error with the command that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
