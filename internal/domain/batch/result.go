// Package batch reports the per-record outcome of an ingest call.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusSkipped ItemStatus = "skipped"
)

// Result is the outcome of processing one record in a batch.
type Result struct {
	index  int
	id     string
	status ItemStatus
	err    error
}

// NewOK creates a successful batch result.
func NewOK(index int, id string) Result { return Result{index: index, id: id, status: StatusOK} }

// NewSkipped creates a result for a record that was not stored, with the reason.
func NewSkipped(index int, id string, reason error) Result {
	return Result{index: index, id: id, status: StatusSkipped, err: reason}
}

// Index returns the record's position in the request.
func (r Result) Index() int { return r.index }

// ID returns the record's source path, if it had one.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns why the record was skipped, if it was.
func (r Result) Err() error { return r.err }

// Report aggregates the results of one batch.
type Report struct {
	Results []Result
}

// Count returns how many results have the given status.
func (r Report) Count(status ItemStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.status == status {
			n++
		}
	}
	return n
}
