package stack

import (
	"context"
	"fmt"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/logging"
)

// UpInput represents a command to create or update a stack.
type UpInput struct {
	Settings *model.StackSettings `json:"-"`
	// SkipCluster stops after the Azure resources are deployed.
	SkipCluster bool `json:"skip_cluster,omitempty"`
}

// UpOutput is the result of Up.
type UpOutput struct {
	Outputs *model.Outputs `json:"outputs"`
}

// Up deploys the Azure resources of the stack and installs the in-cluster
// add-ons. Network and cluster resources go first, add-ons last.
func (u *UseCase) Up(ctx context.Context, in *UpInput) (*UpOutput, error) {
	if in == nil {
		return nil, model.ErrConfigInvalid
	}
	if err := validSettings(in.Settings); err != nil {
		return nil, err
	}
	settings := in.Settings
	var out *UpOutput
	err := u.withOperation(ctx, settings.Stack, model.OperationUp, func(ctx context.Context) error {
		logger := logging.FromContext(ctx)

		st, err := u.loadState(ctx, settings.Stack)
		if err != nil {
			return err
		}
		secret, err := u.ensureIdentity(ctx, st)
		if err != nil {
			return err
		}
		if err := u.ensureSSHKey(ctx, st); err != nil {
			return err
		}
		if err := u.State.SaveStack(ctx, st); err != nil {
			return fmt.Errorf("save stack: %w", err)
		}

		outputs, err := u.Provisioner.Provision(ctx, &model.Plan{
			Settings:     settings,
			Identity:     st.Identity,
			ClientSecret: secret,
			SSHPublicKey: st.SSHPublicKey,
		})
		if err != nil {
			return err
		}
		st.Outputs = outputs
		if err := u.State.SaveStack(ctx, st); err != nil {
			return fmt.Errorf("save stack outputs: %w", err)
		}
		out = &UpOutput{Outputs: outputs}

		if in.SkipCluster {
			logger.Info(ctx, "skipping in-cluster installation")
			return nil
		}
		kubeconfig, err := u.Provisioner.Kubeconfig(ctx, outputs)
		if err != nil {
			return err
		}
		clientID := outputs.ClientID
		if clientID == "" {
			clientID = st.Identity.ApplicationID
		}
		return u.Installer.Install(ctx, kubeconfig, &model.ClusterSpec{
			Settings:     settings,
			TenantID:     outputs.TenantID,
			ClientID:     clientID,
			ClientSecret: secret,
		})
	})
	return out, err
}
