package stack

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/keygen"
)

func TestUp_FirstRun(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()

	out, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()})
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if out.Outputs.ClusterName != "kanebernetes" {
		t.Errorf("Outputs = %+v", out.Outputs)
	}

	if len(h.prov.plans) != 1 {
		t.Fatalf("Provision plans = %d, want 1", len(h.prov.plans))
	}
	plan := h.prov.plans[0]
	if plan.Identity.ServicePrincipalObjectID != "sp-obj" || plan.Identity.ApplicationID != "app-id" {
		t.Errorf("plan identity = %+v", plan.Identity)
	}
	if plan.ClientSecret.Reveal() != "secret-key-1" || plan.SSHPublicKey != "ssh-rsa pub-1" {
		t.Errorf("plan secret/key = %q %q", plan.ClientSecret.Reveal(), plan.SSHPublicKey)
	}

	wantCall := "AddPassword:sp-obj:2099-01-01T00:00:00Z"
	found := false
	for _, c := range h.dir.calls {
		if c == wantCall {
			found = true
		}
	}
	if !found {
		t.Errorf("directory calls = %v, want %q", h.dir.calls, wantCall)
	}

	st, err := h.state.GetStack(ctx, "dev")
	if err != nil {
		t.Fatalf("GetStack() error = %v", err)
	}
	if st.Identity.PasswordKeyID != "key-1" || st.Outputs == nil {
		t.Errorf("stored state = %+v", st)
	}
	if s, err := h.state.GetSecret(ctx, "dev", model.StateSecretSSHPrivateKey); err != nil || !strings.HasPrefix(s.Reveal(), "priv-4096") {
		t.Errorf("ssh private key = %q, %v", s.Reveal(), err)
	}

	if len(h.installer.installed) != 1 {
		t.Fatalf("Install calls = %d, want 1", len(h.installer.installed))
	}
	spec := h.installer.installed[0]
	if spec.TenantID != "tenant" || spec.ClientID != "app-id" || spec.ClientSecret.Reveal() != "secret-key-1" {
		t.Errorf("cluster spec = %+v", spec)
	}

	ops, _ := h.state.ListOperations(ctx, "dev", 0)
	if len(ops) != 1 || ops[0].Kind != model.OperationUp || ops[0].Result != model.ResultSucceeded || ops[0].FinishedAt == nil {
		t.Errorf("operations = %+v", ops)
	}
}

func TestUp_ReusesPasswordAndKey(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()}); err != nil {
			t.Fatalf("Up() #%d error = %v", i, err)
		}
	}
	if h.dir.nextKey != 1 {
		t.Errorf("passwords issued = %d, want 1", h.dir.nextKey)
	}
	if h.keys != 1 {
		t.Errorf("ssh keys generated = %d, want 1", h.keys)
	}
	second := h.prov.plans[1]
	if second.ClientSecret.Reveal() != "secret-key-1" || second.SSHPublicKey != "ssh-rsa pub-1" {
		t.Errorf("second plan = %q %q", second.ClientSecret.Reveal(), second.SSHPublicKey)
	}
}

func TestUp_RecoversLostPublicKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kp, err := keygen.GenerateRSAKeyPair(1024)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		priv    string
		wantPub string
		wantErr string
	}{
		{name: "valid key", priv: string(kp.PrivateKeyPEM), wantPub: kp.PublicKey},
		{name: "unparseable key", priv: "not a pem", wantErr: "recover ssh public key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			if err := h.state.SaveStack(ctx, &model.StackState{Name: "dev"}); err != nil {
				t.Fatal(err)
			}
			if err := h.state.PutSecret(ctx, "dev", model.StateSecretSSHPrivateKey, model.NewSecret(tt.priv)); err != nil {
				t.Fatal(err)
			}

			_, err := h.uc.Up(ctx, &UpInput{Settings: testSettings(), SkipCluster: true})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Up() error = %v, want contains %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Up() error = %v", err)
			}
			if h.keys != 0 {
				t.Errorf("ssh keys generated = %d, want 0", h.keys)
			}
			if got := h.prov.plans[0].SSHPublicKey; got != tt.wantPub {
				t.Errorf("plan public key = %q, want recovered %q", got, tt.wantPub)
			}
			st, err := h.state.GetStack(ctx, "dev")
			if err != nil || st.SSHPublicKey != tt.wantPub {
				t.Errorf("stored public key = %v, %v", st, err)
			}
		})
	}
}

func TestUp_ReissuesRemovedPassword(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()

	if _, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()}); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	h.dir.passwords["key-1"] = false

	if _, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()}); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if got := h.prov.plans[1].ClientSecret.Reveal(); got != "secret-key-2" {
		t.Errorf("ClientSecret = %q, want secret-key-2", got)
	}
	st, _ := h.state.GetStack(ctx, "dev")
	if st.Identity.PasswordKeyID != "key-2" {
		t.Errorf("PasswordKeyID = %q", st.Identity.PasswordKeyID)
	}
}

func TestUp_SkipCluster(t *testing.T) {
	t.Parallel()
	h := newHarness()

	if _, err := h.uc.Up(context.Background(), &UpInput{Settings: testSettings(), SkipCluster: true}); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if len(h.installer.installed) != 0 {
		t.Error("installer called with SkipCluster")
	}
	for _, c := range h.prov.calls {
		if c == "Kubeconfig" {
			t.Error("kubeconfig fetched with SkipCluster")
		}
	}
}

func TestUp_FailureIsRecordedAndIdentityKept(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.prov.provisionErr = errors.New("deployment stack failed")
	ctx := context.Background()

	_, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()})
	if err == nil || !strings.Contains(err.Error(), "deployment stack failed") {
		t.Fatalf("Up() error = %v", err)
	}
	if _, err := h.state.GetSecret(ctx, "dev", model.StateSecretClientSecret); err != nil {
		t.Errorf("issued password not kept: %v", err)
	}
	ops, _ := h.state.ListOperations(ctx, "dev", 0)
	if len(ops) != 1 || ops[0].Result != model.ResultFailed || !strings.Contains(ops[0].Error, "deployment stack failed") {
		t.Errorf("operations = %+v", ops)
	}

	// The lock is released after a failure.
	h.prov.provisionErr = nil
	if _, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()}); err != nil {
		t.Fatalf("Up() after failure error = %v", err)
	}
}

func TestUp_Locked(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()
	if err := h.state.BeginOperation(ctx, &model.Operation{ID: "op-other", Stack: "dev", Kind: model.OperationDestroy}); err != nil {
		t.Fatal(err)
	}

	if _, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()}); !errors.Is(err, model.ErrStateLocked) {
		t.Fatalf("Up() error = %v, want ErrStateLocked", err)
	}
	if len(h.dir.calls) != 0 {
		t.Errorf("directory touched while locked: %v", h.dir.calls)
	}

	if n, err := h.uc.Unlock(ctx, &UnlockInput{Stack: "dev"}); err != nil || n != 1 {
		t.Fatalf("Unlock() = %d, %v", n, err)
	}
	if _, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()}); err != nil {
		t.Fatalf("Up() after unlock error = %v", err)
	}
}

func TestPreview_OnlineWithoutState(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()

	out, err := h.uc.Preview(ctx, &PreviewInput{Settings: testSettings()})
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(out.Changes) != 1 || out.Changes[0].ChangeType != "Create" {
		t.Errorf("Changes = %+v", out.Changes)
	}
	if out.Manifests == "" {
		t.Error("Manifests empty")
	}
	plan := h.prov.plans[0]
	if plan.Identity.ServicePrincipalObjectID != placeholderGUID || plan.ClientSecret.Reveal() != placeholderSecret {
		t.Errorf("plan = %+v", plan.Identity)
	}
	for _, c := range h.dir.calls {
		if strings.HasPrefix(c, "AddPassword") || strings.HasPrefix(c, "EnsureApplication") {
			t.Errorf("preview created directory objects: %v", h.dir.calls)
		}
	}
	if _, err := h.state.GetStack(ctx, "dev"); !errors.Is(err, model.ErrStackNotFound) {
		t.Errorf("preview persisted state: %v", err)
	}
	ops, _ := h.state.ListOperations(ctx, "dev", 0)
	if len(ops) != 1 || ops[0].Kind != model.OperationPreview {
		t.Errorf("operations = %+v", ops)
	}
}

func TestPreview_UsesStoredIdentity(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()
	if _, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()}); err != nil {
		t.Fatal(err)
	}

	if _, err := h.uc.Preview(ctx, &PreviewInput{Settings: testSettings()}); err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	plan := h.prov.plans[len(h.prov.plans)-1]
	if plan.Identity.ServicePrincipalObjectID != "sp-obj" || plan.ClientSecret.Reveal() != "secret-key-1" || plan.SSHPublicKey != "ssh-rsa pub-1" {
		t.Errorf("plan = %+v", plan)
	}
	rendered := h.installer.rendered[len(h.installer.rendered)-1]
	if rendered.TenantID != "tenant" {
		t.Errorf("rendered TenantID = %q", rendered.TenantID)
	}
}

func TestPreview_Offline(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()

	out, err := h.uc.Preview(ctx, &PreviewInput{Settings: testSettings(), Offline: true})
	if err != nil {
		t.Fatalf("Preview(offline) error = %v", err)
	}
	if len(out.Template) == 0 || out.Manifests == "" {
		t.Errorf("offline output = %+v", out)
	}
	if len(h.prov.calls) != 1 || h.prov.calls[0] != "Render" {
		t.Errorf("provisioner calls = %v, want only Render", h.prov.calls)
	}
	if h.keys != 0 {
		t.Error("offline preview generated a key")
	}
	if ops, _ := h.state.ListOperations(ctx, "dev", 0); len(ops) != 0 {
		t.Errorf("offline preview recorded operations: %+v", ops)
	}
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()
	if _, err := h.uc.Up(ctx, &UpInput{Settings: testSettings()}); err != nil {
		t.Fatal(err)
	}

	if err := h.uc.Destroy(ctx, &DestroyInput{Settings: testSettings()}); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if h.dir.calls[len(h.dir.calls)-1] != "DeleteApplication:app-obj" {
		t.Errorf("directory calls = %v", h.dir.calls)
	}
	if _, err := h.state.GetStack(ctx, "dev"); !errors.Is(err, model.ErrStackNotFound) {
		t.Errorf("state not deleted: %v", err)
	}
	if _, err := h.state.GetSecret(ctx, "dev", model.StateSecretClientSecret); !errors.Is(err, model.ErrSecretNotFound) {
		t.Errorf("secret not deleted: %v", err)
	}
	ops, _ := h.uc.History(ctx, &HistoryInput{Stack: "dev"})
	if len(ops) != 2 || ops[0].Kind != model.OperationDestroy {
		t.Errorf("history = %+v", ops)
	}
}

func TestDestroy_WithoutState(t *testing.T) {
	t.Parallel()
	h := newHarness()

	if err := h.uc.Destroy(context.Background(), &DestroyInput{Settings: testSettings()}); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if len(h.prov.calls) != 1 || h.prov.calls[0] != "Deprovision" {
		t.Errorf("provisioner calls = %v", h.prov.calls)
	}
	if len(h.dir.calls) != 0 {
		t.Errorf("directory calls = %v", h.dir.calls)
	}
}

func TestOutputs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("refresh from stack", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		out, err := h.uc.Outputs(ctx, &OutputsInput{Settings: testSettings()})
		if err != nil || out.ClusterName != "kanebernetes" {
			t.Fatalf("Outputs() = %+v, %v", out, err)
		}
		if st, err := h.state.GetStack(ctx, "dev"); err != nil || st.Outputs == nil {
			t.Errorf("outputs not stored: %v", err)
		}
	})

	t.Run("stored", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		_ = h.state.SaveStack(ctx, &model.StackState{Name: "dev", Outputs: &model.Outputs{ClusterName: "stored"}})
		out, err := h.uc.Outputs(ctx, &OutputsInput{Settings: testSettings()})
		if err != nil || out.ClusterName != "stored" {
			t.Fatalf("Outputs() = %+v, %v", out, err)
		}
		if len(h.prov.calls) != 0 {
			t.Errorf("provisioner called: %v", h.prov.calls)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		h.prov.outputs = nil
		if _, err := h.uc.Outputs(ctx, &OutputsInput{Settings: testSettings(), Refresh: true}); !errors.Is(err, model.ErrStackNotFound) {
			t.Fatalf("Outputs() error = %v, want ErrStackNotFound", err)
		}
	})
}

func TestKubeconfig(t *testing.T) {
	t.Parallel()
	h := newHarness()
	got, err := h.uc.Kubeconfig(context.Background(), &KubeconfigInput{Settings: testSettings()})
	if err != nil || string(got) != "kubeconfig-for-kanebernetes" {
		t.Fatalf("Kubeconfig() = %q, %v", got, err)
	}
}

func TestInvalidInput(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()

	if _, err := h.uc.Up(ctx, nil); !errors.Is(err, model.ErrConfigInvalid) {
		t.Errorf("Up(nil) error = %v", err)
	}
	if _, err := h.uc.Preview(ctx, &PreviewInput{}); !errors.Is(err, model.ErrConfigInvalid) {
		t.Errorf("Preview(no settings) error = %v", err)
	}
	if err := h.uc.Destroy(ctx, &DestroyInput{Settings: &model.StackSettings{}}); !errors.Is(err, model.ErrConfigInvalid) {
		t.Errorf("Destroy(no stack) error = %v", err)
	}
	if _, err := h.uc.History(ctx, &HistoryInput{}); !errors.Is(err, model.ErrConfigInvalid) {
		t.Errorf("History(no stack) error = %v", err)
	}
}
