package domain

import (
	"context"
	"errors"
)

// Service resolves plan references against the tariff store.
type Service interface {
	// LoadPlan reads a stored tariff plan by its file name under the
	// tariffs directory.
	LoadPlan(ctx context.Context, file string) (*Plan, error)
	// ResolveRefs expands every file reference in refs into its stored
	// plan, returning fully inline plans.
	ResolveRefs(ctx context.Context, refs []PlanRef) ([]Plan, error)
}

var (
	ErrPlanFileMissing = errors.New("tariff_plan_file_missing")
	ErrPlanInvalid     = errors.New("tariff_plan_invalid")
)
