package azure

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/fake"
)

func TestNew_RequiresSubscriptionAndCredential(t *testing.T) {
	t.Parallel()

	if _, err := New("", &fake.TokenCredential{}, nil); err == nil {
		t.Error("New(no subscription) error = nil")
	}
	if _, err := New("sub", nil, nil); err == nil {
		t.Error("New(no credential) error = nil")
	}
	d, err := New("sub", &fake.TokenCredential{}, nil)
	if err != nil || d.SubscriptionID() != "sub" {
		t.Fatalf("New() = %v, %v", d, err)
	}
}

func TestNewRenderer_RendersOfflineOnly(t *testing.T) {
	t.Parallel()

	d := NewRenderer()
	doc, err := d.Render(testPlan())
	if err != nil || len(doc) == 0 {
		t.Fatalf("Render() = %d bytes, %v", len(doc), err)
	}
	if _, err := d.Outputs(context.Background(), testPlan().Settings); !errors.Is(err, ErrOffline) {
		t.Errorf("Outputs() error = %v, want offline rejection", err)
	}
	if err := d.Deprovision(context.Background(), testPlan().Settings); err == nil {
		t.Error("Deprovision() error = nil")
	}
}
