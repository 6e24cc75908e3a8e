package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/keygen"
	"github.com/kanebernetes/aksstack/internal/logging"
)

// ensureIdentity makes sure the application, its service principal and a usable
// password credential exist. A newly issued password is sealed into state
// before anything else can fail, since Graph returns its text only once.
func (u *UseCase) ensureIdentity(ctx context.Context, st *model.StackState) (model.Secret, error) {
	logger := logging.FromContext(ctx)

	app, err := u.Directory.EnsureApplication(ctx, model.ApplicationDisplayName)
	if err != nil {
		return model.Secret{}, fmt.Errorf("ensure application: %w", err)
	}
	sp, err := u.Directory.EnsureServicePrincipal(ctx, app.AppID)
	if err != nil {
		return model.Secret{}, fmt.Errorf("ensure service principal: %w", err)
	}

	if secret, ok, err := u.reusablePassword(ctx, st, sp); err != nil {
		return model.Secret{}, err
	} else if ok {
		logger.Info(ctx, "reusing service principal password", "keyId", st.Identity.PasswordKeyID)
		st.Identity.ApplicationID = app.AppID
		st.Identity.ApplicationObjectID = app.ObjectID
		return secret, nil
	}

	cred, err := u.Directory.AddPassword(ctx, sp.ObjectID, model.PasswordDisplayName, model.PasswordEndDate)
	if err != nil {
		return model.Secret{}, fmt.Errorf("add service principal password: %w", err)
	}
	logger.Info(ctx, "issued service principal password", "keyId", cred.KeyID)

	if err := u.State.PutSecret(ctx, st.Name, model.StateSecretClientSecret, cred.Secret); err != nil {
		return model.Secret{}, fmt.Errorf("store service principal password: %w", err)
	}
	st.Identity = model.Identity{
		ApplicationID:            app.AppID,
		ApplicationObjectID:      app.ObjectID,
		ServicePrincipalObjectID: sp.ObjectID,
		PasswordKeyID:            cred.KeyID,
	}
	if err := u.State.SaveStack(ctx, st); err != nil {
		return model.Secret{}, fmt.Errorf("save stack identity: %w", err)
	}
	return cred.Secret, nil
}

// reusablePassword reports whether the stored password still belongs to sp.
func (u *UseCase) reusablePassword(ctx context.Context, st *model.StackState, sp *model.ServicePrincipal) (model.Secret, bool, error) {
	id := st.Identity
	if id.PasswordKeyID == "" || id.ServicePrincipalObjectID != sp.ObjectID {
		return model.Secret{}, false, nil
	}
	secret, err := u.State.GetSecret(ctx, st.Name, model.StateSecretClientSecret)
	if errors.Is(err, model.ErrSecretNotFound) {
		return model.Secret{}, false, nil
	}
	if err != nil {
		return model.Secret{}, false, err
	}
	present, err := u.Directory.HasPassword(ctx, sp.ObjectID, id.PasswordKeyID)
	if err != nil {
		return model.Secret{}, false, fmt.Errorf("check service principal password: %w", err)
	}
	return secret, present, nil
}

// ensureSSHKey reuses the stored key pair or generates and stores a new one. A
// stored private key whose public half was lost is recovered, not replaced.
func (u *UseCase) ensureSSHKey(ctx context.Context, st *model.StackState) error {
	priv, err := u.State.GetSecret(ctx, st.Name, model.StateSecretSSHPrivateKey)
	switch {
	case err == nil && st.SSHPublicKey != "":
		return nil
	case err == nil:
		pub, err := keygen.PublicKeyFromPrivatePEM([]byte(priv.Reveal()))
		if err != nil {
			return fmt.Errorf("recover ssh public key: %w", err)
		}
		st.SSHPublicKey = pub
		logging.FromContext(ctx).Info(ctx, "recovered cluster ssh public key from state")
		return nil
	case !errors.Is(err, model.ErrSecretNotFound):
		return err
	}

	kp, err := u.generateKey(model.SSHKeyBits)
	if err != nil {
		return err
	}
	if err := u.State.PutSecret(ctx, st.Name, model.StateSecretSSHPrivateKey, model.NewSecret(string(kp.PrivateKeyPEM))); err != nil {
		return fmt.Errorf("store ssh private key: %w", err)
	}
	st.SSHPublicKey = kp.PublicKey
	logging.FromContext(ctx).Info(ctx, "generated cluster ssh key")
	return nil
}
