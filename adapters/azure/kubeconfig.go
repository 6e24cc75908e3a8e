package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice"
	"github.com/kanebernetes/aksstack/domain/model"
)

// Kubeconfig returns the cluster admin kubeconfig.
func (d *Driver) Kubeconfig(ctx context.Context, out *model.Outputs) (kubeconfig []byte, err error) {
	ctx, cleanup := d.withMethodLogger(ctx, "Kubeconfig")
	defer func() { cleanup(err) }()
	if err = d.online(); err != nil {
		return nil, err
	}

	if out == nil || out.ResourceGroupName == "" || out.ClusterName == "" {
		return nil, errors.New("cluster outputs are not available; run up first")
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	client, err := armcontainerservice.NewManagedClustersClient(d.subscriptionID, d.cred, d.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create AKS client: %w", err)
	}
	res, err := client.ListClusterAdminCredentials(ctx, out.ResourceGroupName, out.ClusterName, nil)
	if err != nil {
		return nil, fmt.Errorf("get cluster credentials: %w", err)
	}
	if len(res.Kubeconfigs) == 0 || res.Kubeconfigs[0] == nil || len(res.Kubeconfigs[0].Value) == 0 {
		return nil, fmt.Errorf("no kubeconfig found for cluster %s", out.ClusterName)
	}
	return res.Kubeconfigs[0].Value, nil
}
