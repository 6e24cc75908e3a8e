// Package azure provisions the Azure side of a stack as one subscription-scope
// deployment stack and reads back its outputs and cluster credentials.
package azure

import (
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/kanebernetes/aksstack/domain/model"
)

var _ model.Provisioner = (*Driver)(nil)

// ErrOffline is returned by a driver from NewRenderer for calls that need Azure.
var ErrOffline = errors.New("azure access is not configured for this command")

// Driver implements model.Provisioner with Azure Resource Manager.
type Driver struct {
	cred           azcore.TokenCredential
	subscriptionID string
	clientOptions  *arm.ClientOptions
}

// New returns a driver bound to a subscription. opts may be nil.
func New(subscriptionID string, cred azcore.TokenCredential, opts *arm.ClientOptions) (*Driver, error) {
	if subscriptionID == "" {
		return nil, errors.New("subscription ID is required")
	}
	if cred == nil {
		return nil, errors.New("credential is required")
	}
	return &Driver{cred: cred, subscriptionID: subscriptionID, clientOptions: opts}, nil
}

// SubscriptionID returns the subscription the driver operates on.
func (d *Driver) SubscriptionID() string { return d.subscriptionID }

// NewRenderer returns a driver that can only Render. Every other method needs
// a driver from New.
func NewRenderer() *Driver { return &Driver{} }

func (d *Driver) online() error {
	if d.cred == nil || d.subscriptionID == "" {
		return ErrOffline
	}
	return nil
}
