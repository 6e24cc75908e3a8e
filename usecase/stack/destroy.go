package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/logging"
)

// DestroyInput represents a command to destroy a stack.
type DestroyInput struct {
	Settings *model.StackSettings `json:"-"`
}

// Destroy deletes the deployment stack with its resources, the AD application
// and the local stack state. Operation history is kept.
func (u *UseCase) Destroy(ctx context.Context, in *DestroyInput) error {
	if in == nil {
		return model.ErrConfigInvalid
	}
	if err := validSettings(in.Settings); err != nil {
		return err
	}
	name := in.Settings.Stack
	return u.withOperation(ctx, name, model.OperationDestroy, func(ctx context.Context) error {
		logger := logging.FromContext(ctx)

		if err := u.Provisioner.Deprovision(ctx, in.Settings); err != nil {
			return err
		}

		st, err := u.State.GetStack(ctx, name)
		if errors.Is(err, model.ErrStackNotFound) {
			logger.Warn(ctx, "no local state; AD application left untouched", "stack", name)
			return nil
		}
		if err != nil {
			return err
		}
		if st.Identity.ApplicationObjectID != "" {
			if err := u.Directory.DeleteApplication(ctx, st.Identity.ApplicationObjectID); err != nil {
				return fmt.Errorf("delete application: %w", err)
			}
		}
		if err := u.State.DeleteStack(ctx, name); err != nil && !errors.Is(err, model.ErrStackNotFound) {
			return err
		}
		return nil
	})
}
