// Package stack implements the stack operations on top of the domain ports.
package stack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/keygen"
	"github.com/kanebernetes/aksstack/internal/logging"
)

// maxRecordedError bounds the error text kept in operation history.
const maxRecordedError = 1024

// UseCase wires the ports needed for stack use cases.
type UseCase struct {
	Provisioner model.Provisioner
	Directory   model.Directory
	Installer   model.ClusterInstaller
	State       model.StateStore

	// GenerateKey defaults to keygen.GenerateRSAKeyPair.
	GenerateKey func(bits int) (*keygen.KeyPair, error)
	// Now defaults to time.Now.
	Now func() time.Time
}

func (u *UseCase) now() time.Time {
	if u.Now != nil {
		return u.Now().UTC()
	}
	return time.Now().UTC()
}

func (u *UseCase) generateKey(bits int) (*keygen.KeyPair, error) {
	if u.GenerateKey != nil {
		return u.GenerateKey(bits)
	}
	return keygen.GenerateRSAKeyPair(bits)
}

func validSettings(st *model.StackSettings) error {
	if st == nil || st.Stack == "" {
		return fmt.Errorf("%w: stack settings are required", model.ErrConfigInvalid)
	}
	return nil
}

// withOperation records fn as one operation of kind on stack. The operation row
// also serves as the stack lock.
func (u *UseCase) withOperation(ctx context.Context, stack string, kind model.OperationKind, fn func(ctx context.Context) error) (err error) {
	op := &model.Operation{
		ID:        "op-" + uuid.NewString(),
		Stack:     stack,
		Kind:      kind,
		StartedAt: u.now(),
	}
	if err := u.State.BeginOperation(ctx, op); err != nil {
		return err
	}
	logger := logging.FromContext(ctx).With("operation", op.ID)
	ctx = logging.WithLogger(ctx, logger)
	defer func() {
		finished := u.now()
		op.FinishedAt = &finished
		op.Result = model.ResultSucceeded
		if err != nil {
			op.Result = model.ResultFailed
			op.Error = logging.Truncate(err.Error(), maxRecordedError)
		}
		if ferr := u.State.FinishOperation(context.WithoutCancel(ctx), op); ferr != nil {
			err = errors.Join(err, fmt.Errorf("record operation %s: %w", op.ID, ferr))
		}
	}()
	return fn(ctx)
}

// loadState returns the stored state of the stack or a fresh one.
func (u *UseCase) loadState(ctx context.Context, name string) (*model.StackState, error) {
	st, err := u.State.GetStack(ctx, name)
	if errors.Is(err, model.ErrStackNotFound) {
		return &model.StackState{Name: name}, nil
	}
	return st, err
}
