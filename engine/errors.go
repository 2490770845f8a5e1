package engine

import "errors"

// Engine-layer sentinels. The metrigo package may translate these into
// its public error contract.
var (
	// ErrClosed is returned by all operations after Close.
	ErrClosed = errors.New("engine closed")

	// ErrUnknownGranularity is returned when a query names a granularity
	// that is not part of the configured chain.
	ErrUnknownGranularity = errors.New("unknown granularity")

	// ErrInvalidValue is returned when a sample payload does not match
	// the metric type it is written as.
	ErrInvalidValue = errors.New("invalid value")
)
