package saga

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Step is a single saga step with an execute action and an optional
// compensating action.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga runs steps in order and compensates executed steps in reverse order
// when one fails.
type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// New creates a saga orchestrator.
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

// AddStep appends a step to the saga.
func (s *Saga) AddStep(step Step) {
	s.steps = append(s.steps, step)
}

// Execute runs all steps. On failure it runs the compensations of already
// executed steps in reverse order, logging compensation failures but always
// returning the original error.
func (s *Saga) Execute(ctx context.Context) error {
	executed := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		s.logger.Debug("executing saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)

		if err := step.Execute(ctx); err != nil {
			s.logger.Error("saga step failed, compensating",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)

			for i := len(executed) - 1; i >= 0; i-- {
				comp := executed[i]
				if comp.Compensate == nil {
					continue
				}
				if compErr := comp.Compensate(ctx); compErr != nil {
					s.logger.Error("saga compensation failed",
						zap.String("saga", s.name),
						zap.String("step", comp.Name),
						zap.Error(compErr),
					)
				}
			}

			return fmt.Errorf("saga %q failed at step %q: %w", s.name, step.Name, err)
		}

		executed = append(executed, step)
	}

	s.logger.Info("saga completed", zap.String("saga", s.name))
	return nil
}
