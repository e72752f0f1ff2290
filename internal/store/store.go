package store

import (
	"context"
	"errors"

	"storefront/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid rotation state")
)

// RotationStore persists the current promotional rotation. Save replaces the
// previous value wholesale; a reader never observes half of a write.
type RotationStore interface {
	Load(ctx context.Context) (*domain.RotationState, bool, error)
	Save(ctx context.Context, state domain.RotationState) error
}

// CloneState copies the code slice so callers cannot alias stored state.
func CloneState(state domain.RotationState) domain.RotationState {
	codes := make([]domain.PromotionalCode, len(state.Codes))
	copy(codes, state.Codes)
	return domain.RotationState{Codes: codes, SelectedAt: state.SelectedAt}
}
