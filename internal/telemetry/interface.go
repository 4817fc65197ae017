package telemetry

import "context"

// Sampler performs exactly one measurement of a metrics source. The
// returned record is always usable; a non-nil error only explains why the
// record is degraded. Samplers never retry.
type Sampler interface {
	Sample(ctx context.Context) (Record, error)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(ctx context.Context) (Record, error)

func (f SamplerFunc) Sample(ctx context.Context) (Record, error) {
	return f(ctx)
}
