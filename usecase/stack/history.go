package stack

import (
	"context"

	"github.com/kanebernetes/aksstack/domain/model"
)

// HistoryInput represents a command to list recent operations.
type HistoryInput struct {
	Stack string `json:"stack"`
	Limit int    `json:"limit,omitempty"`
}

// History returns the newest operations of a stack first.
func (u *UseCase) History(ctx context.Context, in *HistoryInput) ([]*model.Operation, error) {
	if in == nil || in.Stack == "" {
		return nil, model.ErrConfigInvalid
	}
	return u.State.ListOperations(ctx, in.Stack, in.Limit)
}

// UnlockInput represents a command to release a stale stack lock.
type UnlockInput struct {
	Stack string `json:"stack"`
}

// Unlock marks unfinished operations of a stack as interrupted.
func (u *UseCase) Unlock(ctx context.Context, in *UnlockInput) (int64, error) {
	if in == nil || in.Stack == "" {
		return 0, model.ErrConfigInvalid
	}
	return u.State.Unlock(ctx, in.Stack)
}
