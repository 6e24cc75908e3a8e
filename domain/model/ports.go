package model

import (
	"context"
	"time"
)

// Plan carries everything the resource provisioner needs for one submission.
type Plan struct {
	Settings     *StackSettings
	Identity     Identity
	ClientSecret Secret
	SSHPublicKey string
}

// Provisioner submits the Azure resource graph to the deployment engine.
type Provisioner interface {
	Provision(ctx context.Context, plan *Plan) (*Outputs, error)
	Preview(ctx context.Context, plan *Plan) ([]Change, error)
	// Render returns the deployment document without contacting Azure.
	// Secure parameters are masked.
	Render(plan *Plan) ([]byte, error)
	Deprovision(ctx context.Context, settings *StackSettings) error
	Outputs(ctx context.Context, settings *StackSettings) (*Outputs, error)
	Kubeconfig(ctx context.Context, out *Outputs) ([]byte, error)
}

// Application is a directory application registration.
type Application struct {
	ObjectID string
	AppID    string
}

// ServicePrincipal is a directory service principal.
type ServicePrincipal struct {
	ObjectID string
	AppID    string
}

// PasswordCredential is a newly issued service principal password.
type PasswordCredential struct {
	KeyID  string
	Secret Secret
}

// Directory manages the directory objects of the cluster identity.
type Directory interface {
	EnsureApplication(ctx context.Context, displayName string) (*Application, error)
	EnsureServicePrincipal(ctx context.Context, appID string) (*ServicePrincipal, error)
	AddPassword(ctx context.Context, spObjectID, displayName string, end time.Time) (*PasswordCredential, error)
	HasPassword(ctx context.Context, spObjectID, keyID string) (bool, error)
	DeleteApplication(ctx context.Context, appObjectID string) error
}

// ClusterSpec is the input of the in-cluster installation.
type ClusterSpec struct {
	Settings     *StackSettings
	TenantID     string
	ClientID     string
	ClientSecret Secret
}

// ClusterInstaller applies the in-cluster add-ons and custom resources.
type ClusterInstaller interface {
	Install(ctx context.Context, kubeconfig []byte, spec *ClusterSpec) error
	Render(spec *ClusterSpec) (string, error)
}

// StateStore persists stack state, sealed secrets and the operation history.
type StateStore interface {
	GetStack(ctx context.Context, name string) (*StackState, error)
	SaveStack(ctx context.Context, st *StackState) error
	DeleteStack(ctx context.Context, name string) error
	PutSecret(ctx context.Context, stack, key string, value Secret) error
	GetSecret(ctx context.Context, stack, key string) (Secret, error)
	BeginOperation(ctx context.Context, op *Operation) error
	FinishOperation(ctx context.Context, op *Operation) error
	ListOperations(ctx context.Context, stack string, limit int) ([]*Operation, error)
	// Unlock closes unfinished operations left behind by an aborted run.
	Unlock(ctx context.Context, stack string) (int64, error)
}
