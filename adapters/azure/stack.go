package azure

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armdeploymentstacks"
	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/logging"
)

const (
	provisionTimeout   = 60 * time.Minute
	deprovisionTimeout = 45 * time.Minute
	readTimeout        = 2 * time.Minute

	tagStack     = "aksstack-stack"
	tagManagedBy = "managed-by"
)

func (d *Driver) stacksClient() (*armdeploymentstacks.Client, error) {
	client, err := armdeploymentstacks.NewClient(d.subscriptionID, d.cred, d.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create deployment stacks client: %w", err)
	}
	return client, nil
}

// Provision creates or updates the deployment stack and returns its outputs.
// Resources dropped from the template are deleted on the next submission.
func (d *Driver) Provision(ctx context.Context, plan *model.Plan) (out *model.Outputs, err error) {
	ctx, cleanup := d.withMethodLogger(ctx, "Provision")
	defer func() { cleanup(err) }()
	if err = d.online(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, provisionTimeout)
	defer cancel()

	st := plan.Settings
	roles, err := d.resolveRoles(ctx)
	if err != nil {
		return nil, err
	}

	params := map[string]*armdeploymentstacks.DeploymentParameter{}
	for k, v := range buildParameters(plan, roles) {
		params[k] = &armdeploymentstacks.DeploymentParameter{Value: v}
	}

	client, err := d.stacksClient()
	if err != nil {
		return nil, err
	}

	name := deploymentStackName(st.Project, st.Stack)
	stack := armdeploymentstacks.DeploymentStack{
		Location: to.Ptr(st.Location),
		Properties: &armdeploymentstacks.DeploymentStackProperties{
			Template:   BuildTemplate(),
			Parameters: params,
			ActionOnUnmanage: &armdeploymentstacks.ActionOnUnmanage{
				Resources:        to.Ptr(armdeploymentstacks.DeploymentStacksDeleteDetachEnumDelete),
				ResourceGroups:   to.Ptr(armdeploymentstacks.DeploymentStacksDeleteDetachEnumDelete),
				ManagementGroups: to.Ptr(armdeploymentstacks.DeploymentStacksDeleteDetachEnumDetach),
			},
			DenySettings: &armdeploymentstacks.DenySettings{
				Mode: to.Ptr(armdeploymentstacks.DenySettingsModeNone),
			},
		},
		Tags: map[string]*string{
			tagStack:     to.Ptr(stackTagValue(st.Project, st.Stack)),
			tagManagedBy: to.Ptr(st.Project),
		},
	}

	logging.FromContext(ctx).Info(ctx, "submitting deployment stack", "stack", name, "resource_group", st.ResourceGroupName, "location", st.Location)
	poller, err := client.BeginCreateOrUpdateAtSubscription(ctx, name, stack, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deployment stack %s: %w", name, err)
	}
	res, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("deployment stack %s failed: %w", name, err)
	}
	if res.Properties == nil {
		return nil, fmt.Errorf("deployment stack %s returned no properties", name)
	}
	return parseOutputs(res.Properties.Outputs)
}

// Outputs reads the outputs of the existing deployment stack.
func (d *Driver) Outputs(ctx context.Context, settings *model.StackSettings) (out *model.Outputs, err error) {
	ctx, cleanup := d.withMethodLogger(ctx, "Outputs")
	defer func() { cleanup(err) }()
	if err = d.online(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	client, err := d.stacksClient()
	if err != nil {
		return nil, err
	}
	name := deploymentStackName(settings.Project, settings.Stack)
	res, err := client.GetAtSubscription(ctx, name, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("deployment stack %s: %w", name, model.ErrStackNotFound)
		}
		return nil, fmt.Errorf("get deployment stack %s: %w", name, err)
	}
	if res.Properties == nil || res.Properties.Outputs == nil {
		return nil, fmt.Errorf("deployment stack %s has no outputs", name)
	}
	return parseOutputs(res.Properties.Outputs)
}

// Deprovision deletes the deployment stack together with its resources and
// resource group. A missing stack is success.
func (d *Driver) Deprovision(ctx context.Context, settings *model.StackSettings) (err error) {
	ctx, cleanup := d.withMethodLogger(ctx, "Deprovision")
	defer func() { cleanup(err) }()
	if err = d.online(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, deprovisionTimeout)
	defer cancel()

	client, err := d.stacksClient()
	if err != nil {
		return err
	}
	name := deploymentStackName(settings.Project, settings.Stack)
	if _, err := client.GetAtSubscription(ctx, name, nil); err != nil {
		if isNotFound(err) {
			logging.FromContext(ctx).Info(ctx, "deployment stack already absent", "stack", name)
			return nil
		}
		return fmt.Errorf("get deployment stack %s: %w", name, err)
	}

	poller, err := client.BeginDeleteAtSubscription(ctx, name, &armdeploymentstacks.ClientBeginDeleteAtSubscriptionOptions{
		UnmanageActionResources:        to.Ptr(armdeploymentstacks.UnmanageActionResourceModeDelete),
		UnmanageActionResourceGroups:   to.Ptr(armdeploymentstacks.UnmanageActionResourceGroupModeDelete),
		UnmanageActionManagementGroups: to.Ptr(armdeploymentstacks.UnmanageActionManagementGroupModeDetach),
	})
	if err != nil {
		return fmt.Errorf("begin deployment stack deletion %s: %w", name, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("delete deployment stack %s: %w", name, err)
	}
	return nil
}

// parseOutputs maps the raw deployment outputs onto model.Outputs.
func parseOutputs(raw any) (*model.Outputs, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("deployment outputs have unexpected type %T", raw)
	}
	values := map[string]string{}
	for k, v := range m {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := entry["value"].(string); ok {
			values[strings.ToUpper(k)] = s
		}
	}

	out := &model.Outputs{
		TenantID:            values[OutputTenantID],
		ResourceGroupName:   values[OutputResourceGroupName],
		ClusterName:         values[OutputClusterName],
		ClusterID:           values[OutputClusterID],
		SubnetID:            values[OutputSubnetID],
		RegistryID:          values[OutputRegistryID],
		RegistryLoginServer: values[OutputRegistryLoginServer],
		WorkspaceID:         values[OutputWorkspaceID],
		ClientID:            values[OutputClientID],
	}
	var missing []string
	for key, v := range map[string]string{
		OutputTenantID:          out.TenantID,
		OutputResourceGroupName: out.ResourceGroupName,
		OutputClusterName:       out.ClusterName,
	} {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("deployment outputs missing %s", strings.Join(missing, ", "))
	}
	return out, nil
}
