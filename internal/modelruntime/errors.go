package modelruntime

import "errors"

// ErrDimensionMismatch is returned by ModelRuntime.EmbedText when the
// backend returns a vector whose length doesn't match the caller's
// declared collection dimension.
var ErrDimensionMismatch = errors.New("modelruntime: embedding dimension mismatch")

// ErrNonFiniteVector is returned when an embedding contains NaN or Inf
// components, which would silently corrupt cosine-similarity search.
var ErrNonFiniteVector = errors.New("modelruntime: embedding contains non-finite values")

// ErrUnsupportedBackend is returned by NewBackend for an unrecognized
// backend name.
var ErrUnsupportedBackend = errors.New("modelruntime: unsupported backend")

// ErrModelUnavailable wraps a backend error that a caller should treat
// as "this model can't serve the request right now" (preflight
// unhealthy, or a non-recoverable provider error after retries).
var ErrModelUnavailable = errors.New("modelruntime: model unavailable")
