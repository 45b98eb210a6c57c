package ports

import (
	"context"

	"govac/domain/model"
	"govac/domain/reading"
)

// FitterPort fits one model specification to a response table. Numerical
// trouble is reported through the flags of the returned model; an error
// means the input was unusable or the context ended.
type FitterPort interface {
	Fit(ctx context.Context, spec model.Spec, data *reading.ResponseTable) (*model.Fitted, error)
	// Profiler binds likelihood profiling to the table the models were
	// fitted on.
	Profiler(data *reading.ResponseTable) ProfilerPort
}

// ProfilerPort evaluates the profiled deviance with one fixed coefficient
// held at value.
type ProfilerPort interface {
	ProfileDeviance(ctx context.Context, fitted *model.Fitted, term string, value float64) (float64, error)
}
