package stack

import (
	"context"
	"fmt"

	"github.com/kanebernetes/aksstack/domain/model"
)

// OutputsInput represents a command to read stack outputs.
type OutputsInput struct {
	Settings *model.StackSettings `json:"-"`
	// Refresh reads the outputs from the deployment stack instead of local state.
	Refresh bool `json:"refresh,omitempty"`
}

// Outputs returns the stack outputs, from local state unless refreshed or absent.
func (u *UseCase) Outputs(ctx context.Context, in *OutputsInput) (*model.Outputs, error) {
	if in == nil {
		return nil, model.ErrConfigInvalid
	}
	if err := validSettings(in.Settings); err != nil {
		return nil, err
	}
	st, err := u.loadState(ctx, in.Settings.Stack)
	if err != nil {
		return nil, err
	}
	if st.Outputs != nil && !in.Refresh {
		return st.Outputs, nil
	}
	out, err := u.Provisioner.Outputs(ctx, in.Settings)
	if err != nil {
		return nil, err
	}
	st.Outputs = out
	if err := u.State.SaveStack(ctx, st); err != nil {
		return nil, fmt.Errorf("save stack outputs: %w", err)
	}
	return out, nil
}

// KubeconfigInput represents a command to fetch the cluster admin kubeconfig.
type KubeconfigInput struct {
	Settings *model.StackSettings `json:"-"`
}

// Kubeconfig returns the admin kubeconfig of the stack's cluster.
func (u *UseCase) Kubeconfig(ctx context.Context, in *KubeconfigInput) ([]byte, error) {
	if in == nil {
		return nil, model.ErrConfigInvalid
	}
	out, err := u.Outputs(ctx, &OutputsInput{Settings: in.Settings})
	if err != nil {
		return nil, err
	}
	return u.Provisioner.Kubeconfig(ctx, out)
}
