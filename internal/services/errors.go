package services

import (
	"fmt"
	"strings"
)

// SchemaMismatchError reports that a job's weight-map keys do not cover
// exactly the schema's categories. User-correctable; maps to a 400.
type SchemaMismatchError struct {
	SchemaKeys []string
	WeightKeys []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf(
		"schema categories and weight categories do not match. Schema: [%s], Weights: [%s]",
		strings.Join(e.SchemaKeys, ", "),
		strings.Join(e.WeightKeys, ", "),
	)
}

// RetrievalError reports an embedding or vector-store failure during
// candidate retrieval. Transient and retryable; no partial retrieval
// results are ever scored.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("candidate retrieval failed at %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// RatingFailure attributes one failed rating call to a specific resume.
type RatingFailure struct {
	ResumeID string
	Err      error
}

func (f RatingFailure) Error() string {
	return fmt.Sprintf("rating resume %s: %v", f.ResumeID, f.Err)
}

// RatingError aborts a matching run under the fail-fast policy. It carries
// every per-candidate failure observed before the fan-out was cancelled.
type RatingError struct {
	Failures []RatingFailure
}

func (e *RatingError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("candidate rating failed: %v", e.Failures[0])
	}
	return fmt.Sprintf("candidate rating failed for %d candidates, first: %v", len(e.Failures), e.Failures[0])
}
