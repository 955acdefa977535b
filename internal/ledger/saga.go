package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/virtupay-ledger/internal/domain/shared"
)

// ErrNoCompensation marks a completed step that cannot be undone
var ErrNoCompensation = errors.New("step has no compensation")

// Step is one mutation of a saga together with the action that undoes it
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error // nil when the step cannot be undone
}

// Saga runs steps in order. When a step fails, the steps already completed are
// compensated in reverse order. A compensation that is missing or fails turns
// the failure into shared.ErrReconciliation.
type Saga struct {
	name   string
	steps  []Step
	logger *slog.Logger
}

func NewSaga(name string, logger *slog.Logger) *Saga {
	return &Saga{
		name:   name,
		logger: logger.With("saga", name),
	}
}

// Then appends a step
func (s *Saga) Then(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the saga
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.Do(ctx)
		if err == nil {
			continue
		}

		s.logger.Warn("Saga step failed, compensating", "step", step.Name, "completed_steps", i, "error", err)
		compErr := s.compensate(context.WithoutCancel(ctx), s.steps[:i])
		if compErr != nil {
			recErr := shared.ErrReconciliation{Operation: fmt.Sprintf("%s/%s", s.name, step.Name), Cause: err, CompensationErr: compErr}
			s.logger.Error("Saga compensation failed, ledgers need reconciliation", "step", step.Name, "error", recErr)
			return recErr
		}
		return err
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, ErrNoCompensation))
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("Compensation failed", "step", step.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		s.logger.Info("Step compensated", "step", step.Name)
	}
	return errors.Join(errs...)
}
