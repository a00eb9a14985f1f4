package optimizer

import (
	"context"
	"errors"
	"time"

	"github.com/theoremus-urban-solutions/railopt/model"
)

// ErrScenarioTimeout reports that a what-if analysis hit its time box.
// Distinct from other failures so callers can retry with reduced scope.
var ErrScenarioTimeout = errors.New("scenario analysis timed out")

// ScenarioResult is the predicted outcome of a hypothetical delay.
type ScenarioResult struct {
	Schedules map[string]*model.Schedule `json:"schedules"`
	Metrics   Metrics                    `json:"metrics"`
}

// EvaluateScenario predicts the effect of delaying one train by the given
// amount against the supplied schedules. The input schedules are never
// mutated; the analysis runs repair and replay on copies. The caller's
// context bounds the work: on expiry the analysis fails closed with
// ErrScenarioTimeout rather than returning a partial answer.
func (o *Optimizer) EvaluateScenario(ctx context.Context, schedules map[string]*model.Schedule, trainID string, delay time.Duration) (ScenarioResult, error) {
	g := make(genome, len(schedules))
	for id, s := range schedules {
		g[id] = s.Clone()
	}
	if sched, ok := g[trainID]; ok && delay > 0 {
		sched.ShiftFrom(0, delay)
		sched.TotalDelay += delay
	}

	if err := ctx.Err(); err != nil {
		return ScenarioResult{}, ErrScenarioTimeout
	}
	o.repair(g)
	if err := ctx.Err(); err != nil {
		return ScenarioResult{}, ErrScenarioTimeout
	}
	return ScenarioResult{Schedules: g, Metrics: o.evaluate(g)}, nil
}
