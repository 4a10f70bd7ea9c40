package usecases

import "errors"

// Failure taxonomy for the evidence pipeline. Failures inside an
// evidence-gathering path are absorbed locally and degrade to the other
// path or to a fallback answer; none of these reach the transport layer.
var (
	// ErrDataLoad marks a malformed or missing table. Fatal at startup,
	// recoverable through reload.
	ErrDataLoad = errors.New("data load failed")

	// ErrRetrievalUnavailable marks an embedding capability failure.
	// Degrades to aggregation-only or keyword-overlap fallback retrieval.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrAggregation marks an unresolvable column or filter. Reported to
	// the composer as "no aggregation evidence", never a request failure.
	ErrAggregation = errors.New("aggregation failed")

	// ErrGenerationUnavailable marks a failed or timed-out generation
	// call. The composer answers from a template instead.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrNoData means no corpus has been loaded yet.
	ErrNoData = errors.New("no data loaded")
)
