package stack

import (
	"context"
	"errors"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/logging"
)

// Placeholders used when a preview runs before the identity exists.
const (
	placeholderGUID   = "00000000-0000-0000-0000-000000000000"
	placeholderSecret = "preview-placeholder"
)

// PreviewInput represents a command to preview a stack.
type PreviewInput struct {
	Settings *model.StackSettings `json:"-"`
	// Offline renders the deployment document without contacting Azure.
	Offline bool `json:"offline,omitempty"`
}

// PreviewOutput is the result of Preview. Changes is set online, Template offline.
type PreviewOutput struct {
	Changes   []model.Change `json:"changes,omitempty"`
	Template  []byte         `json:"-"`
	Manifests string         `json:"-"`
}

// Preview reports what Up would change. Secrets are never part of the output.
func (u *UseCase) Preview(ctx context.Context, in *PreviewInput) (*PreviewOutput, error) {
	if in == nil {
		return nil, model.ErrConfigInvalid
	}
	if err := validSettings(in.Settings); err != nil {
		return nil, err
	}
	if in.Offline {
		return u.previewOffline(ctx, in.Settings)
	}
	var out *PreviewOutput
	err := u.withOperation(ctx, in.Settings.Stack, model.OperationPreview, func(ctx context.Context) error {
		plan, st, err := u.previewPlan(ctx, in.Settings)
		if err != nil {
			return err
		}
		changes, err := u.Provisioner.Preview(ctx, plan)
		if err != nil {
			return err
		}
		manifests, err := u.Installer.Render(clusterSpecFor(in.Settings, st, plan))
		if err != nil {
			return err
		}
		out = &PreviewOutput{Changes: changes, Manifests: manifests}
		return nil
	})
	return out, err
}

func (u *UseCase) previewOffline(ctx context.Context, settings *model.StackSettings) (*PreviewOutput, error) {
	st, err := u.loadState(ctx, settings.Stack)
	if err != nil {
		return nil, err
	}
	plan := &model.Plan{
		Settings:     settings,
		Identity:     st.Identity,
		ClientSecret: model.NewSecret(placeholderSecret),
		SSHPublicKey: st.SSHPublicKey,
	}
	fillPlaceholders(plan)
	tmpl, err := u.Provisioner.Render(plan)
	if err != nil {
		return nil, err
	}
	manifests, err := u.Installer.Render(clusterSpecFor(settings, st, plan))
	if err != nil {
		return nil, err
	}
	return &PreviewOutput{Template: tmpl, Manifests: manifests}, nil
}

// previewPlan builds a plan from stored state without creating directory
// objects or keys. Missing values are replaced by placeholders.
func (u *UseCase) previewPlan(ctx context.Context, settings *model.StackSettings) (*model.Plan, *model.StackState, error) {
	logger := logging.FromContext(ctx)
	st, err := u.loadState(ctx, settings.Stack)
	if err != nil {
		return nil, nil, err
	}
	plan := &model.Plan{
		Settings:     settings,
		Identity:     st.Identity,
		SSHPublicKey: st.SSHPublicKey,
	}
	secret, err := u.State.GetSecret(ctx, st.Name, model.StateSecretClientSecret)
	switch {
	case err == nil:
		plan.ClientSecret = secret
	case errors.Is(err, model.ErrSecretNotFound):
		plan.ClientSecret = model.NewSecret(placeholderSecret)
	default:
		return nil, nil, err
	}
	if plan.SSHPublicKey == "" {
		kp, err := u.generateKey(model.SSHKeyBits)
		if err != nil {
			return nil, nil, err
		}
		plan.SSHPublicKey = kp.PublicKey
	}
	if fillPlaceholders(plan) {
		logger.Warn(ctx, "no stored identity; previewing with placeholder service principal IDs")
	}
	return plan, st, nil
}

// fillPlaceholders sets zero GUIDs for a missing identity and reports whether it did.
func fillPlaceholders(plan *model.Plan) bool {
	if plan.Identity.ApplicationID != "" && plan.Identity.ServicePrincipalObjectID != "" {
		return false
	}
	plan.Identity.ApplicationID = placeholderGUID
	plan.Identity.ServicePrincipalObjectID = placeholderGUID
	return true
}

func clusterSpecFor(settings *model.StackSettings, st *model.StackState, plan *model.Plan) *model.ClusterSpec {
	spec := &model.ClusterSpec{
		Settings:     settings,
		ClientID:     plan.Identity.ApplicationID,
		ClientSecret: plan.ClientSecret,
	}
	if st.Outputs != nil {
		spec.TenantID = st.Outputs.TenantID
	}
	if spec.TenantID == "" {
		spec.TenantID = placeholderGUID
	}
	return spec
}
