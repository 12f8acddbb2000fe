package bulk

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sksmith/stock-ledger/core"
)

// RecordError ties a failure to the record that caused it.
type RecordError struct {
	Record Record
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// BatchError reports the records of a batch that failed. It matches core.ErrPartialBatchFailure.
type BatchError struct {
	Total  int
	Failed int
	Errors *multierror.Error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d records failed: %v", e.Failed, e.Total, e.Errors)
}

func (e *BatchError) Is(target error) bool {
	return target == core.ErrPartialBatchFailure
}

func (e *BatchError) Unwrap() error {
	return e.Errors.ErrorOrNil()
}

// Failures lists the individual record failures.
func (e *BatchError) Failures() []*RecordError {
	if e.Errors == nil {
		return nil
	}
	failures := make([]*RecordError, 0, len(e.Errors.Errors))
	for _, err := range e.Errors.Errors {
		if re, ok := err.(*RecordError); ok {
			failures = append(failures, re)
		}
	}
	return failures
}
