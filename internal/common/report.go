// File: internal/common/report.go
package common

import "fmt"

// ItemFailure records a single failed item inside a batched operation.
type ItemFailure struct {
	Key string
	Err error
}

func (f ItemFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Key, f.Err)
}

// BatchReport collects per-item outcomes of a fan-out operation. Callers
// decide what a partial failure means; the report never aborts the batch.
type BatchReport struct {
	Succeeded int
	Failures  []ItemFailure
}

// Ok records one successful item.
func (r *BatchReport) Ok() {
	r.Succeeded++
}

// Fail records one failed item under the given key.
func (r *BatchReport) Fail(key string, err error) {
	r.Failures = append(r.Failures, ItemFailure{Key: key, Err: err})
}

// Merge folds another report into this one.
func (r *BatchReport) Merge(other BatchReport) {
	r.Succeeded += other.Succeeded
	r.Failures = append(r.Failures, other.Failures...)
}

// HasFailures reports whether any item failed.
func (r *BatchReport) HasFailures() bool {
	return len(r.Failures) > 0
}

// FailureKeys returns the keys of failed items, in recording order.
func (r *BatchReport) FailureKeys() []string {
	keys := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		keys = append(keys, f.Key)
	}
	return keys
}
