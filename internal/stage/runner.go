package stage

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Runner executes every declared stage strictly in declaration order.
type Runner struct {
	Registry *Registry
	Executor *Executor
}

// Run executes all stages and returns the final pipeline result. The error is
// the unified setup failure when a stage that failed validation was reached,
// otherwise the first stage failure, or the abort that stopped the run. Setup
// failures of stages that were skipped are not reported.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	exec := r.Executor
	if exec == nil {
		exec = NewExecutor()
	}
	result := ResultSuccess
	var firstErr error
	setupReached := false

	for _, s := range r.Registry.ExecutionOrder() {
		if err := ctx.Err(); err != nil {
			return Worse(result, ResultNotBuilt), errors.AbortedError("pipeline run canceled").
				WithCause(err).
				WithContext("stage", s.Name).
				Build()
		}
		out := exec.Run(ctx, s, result)
		result = out.Result
		if out.Abort {
			return result, out.Err
		}
		if out.Status == StatusFail && s.SetupErr != nil {
			setupReached = true
		}
		if out.Status == StatusFail && firstErr == nil {
			firstErr = out.Err
		}
	}

	if name, err := r.Registry.FirstFailing(); err != nil && setupReached {
		return result, errors.WrapError(err, errors.CategoryConfig, fmt.Sprintf("pipeline setup failed at stage %q", name)).
			Fatal().
			WithContext("stage", name).
			Build()
	}
	return result, firstErr
}
