package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/kanebernetes/aksstack/domain/model"
)

// Preview runs an ARM what-if of the subscription deployment and reports the
// change type of every affected resource.
func (d *Driver) Preview(ctx context.Context, plan *model.Plan) (changes []model.Change, err error) {
	ctx, cleanup := d.withMethodLogger(ctx, "Preview")
	defer func() { cleanup(err) }()
	if err = d.online(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, provisionTimeout)
	defer cancel()

	roles, err := d.resolveRoles(ctx)
	if err != nil {
		return nil, err
	}
	client, err := armresources.NewDeploymentsClient(d.subscriptionID, d.cred, d.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create deployments client: %w", err)
	}

	st := plan.Settings
	name := deploymentStackName(st.Project, st.Stack)
	poller, err := client.BeginWhatIfAtSubscriptionScope(ctx, name, armresources.DeploymentWhatIf{
		Location: to.Ptr(st.Location),
		Properties: &armresources.DeploymentWhatIfProperties{
			Mode:       to.Ptr(armresources.DeploymentModeIncremental),
			Template:   BuildTemplate(),
			Parameters: wrapParameters(buildParameters(plan, roles)),
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("begin what-if %s: %w", name, err)
	}
	res, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("what-if %s failed: %w", name, err)
	}
	if res.Error != nil && res.Error.Message != nil {
		return nil, fmt.Errorf("what-if %s: %s", name, *res.Error.Message)
	}
	if res.Properties == nil {
		return nil, nil
	}
	return convertChanges(res.Properties.Changes), nil
}

func convertChanges(in []*armresources.WhatIfChange) []model.Change {
	out := make([]model.Change, 0, len(in))
	for _, c := range in {
		if c == nil || c.ResourceID == nil {
			continue
		}
		ch := model.Change{ResourceID: *c.ResourceID}
		if c.ChangeType != nil {
			ch.ChangeType = string(*c.ChangeType)
		}
		if n := len(c.Delta); n > 0 {
			paths := make([]string, 0, n)
			for _, pc := range c.Delta {
				if pc != nil && pc.Path != nil {
					paths = append(paths, *pc.Path)
				}
			}
			ch.Detail = strings.Join(paths, ", ")
		}
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b model.Change) int { return strings.Compare(a.ResourceID, b.ResourceID) })
	return out
}

// Render returns the template and masked parameters as indented JSON. Role
// definition IDs are shown as placeholders.
func (d *Driver) Render(plan *model.Plan) ([]byte, error) {
	return renderDeployment(plan)
}

func renderDeployment(plan *model.Plan) ([]byte, error) {
	doc := map[string]any{
		"template":   BuildTemplate(),
		"parameters": wrapParameters(maskParameters(buildParameters(plan, placeholderRoles()))),
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal deployment: %w", err)
	}
	return b, nil
}
