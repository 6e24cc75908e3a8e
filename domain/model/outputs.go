package model

import "time"

// Outputs are the values exported by a provisioned stack.
type Outputs struct {
	TenantID            string `json:"tenantId" yaml:"tenantId"`
	ResourceGroupName   string `json:"resourceGroupName" yaml:"resourceGroupName"`
	ClusterName         string `json:"clusterName" yaml:"clusterName"`
	ClusterID           string `json:"clusterId" yaml:"clusterId"`
	SubnetID            string `json:"subnetId" yaml:"subnetId"`
	RegistryID          string `json:"registryId" yaml:"registryId"`
	RegistryLoginServer string `json:"registryLoginServer" yaml:"registryLoginServer"`
	WorkspaceID         string `json:"workspaceId" yaml:"workspaceId"`
	ClientID            string `json:"clientId" yaml:"clientId"`
}

// Identity references the directory objects backing the cluster service principal.
type Identity struct {
	ApplicationID            string `json:"applicationId"`
	ApplicationObjectID      string `json:"applicationObjectId"`
	ServicePrincipalObjectID string `json:"servicePrincipalObjectId"`
	PasswordKeyID            string `json:"passwordKeyId,omitempty"`
}

// StackState is the locally persisted state of a stack.
type StackState struct {
	Name         string
	Identity     Identity
	SSHPublicKey string
	Outputs      *Outputs
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Secret keys stored in stack state.
const (
	StateSecretClientSecret  = "sp-password"
	StateSecretSSHPrivateKey = "ssh-private-key"
)

// OperationKind names a stack operation.
type OperationKind string

const (
	OperationUp      OperationKind = "up"
	OperationPreview OperationKind = "preview"
	OperationDestroy OperationKind = "destroy"
)

// Operation results.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// Operation is one recorded run against a stack.
type Operation struct {
	ID         string        `json:"id"`
	Stack      string        `json:"stack"`
	Kind       OperationKind `json:"kind"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
	Result     string        `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Change is one resource change reported by a preview.
type Change struct {
	ResourceID string `json:"resourceId"`
	ChangeType string `json:"changeType"`
	Detail     string `json:"detail,omitempty"`
}
