package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/kanebernetes/aksstack/domain/model"
)

// roleDefinitionID looks up a built-in role definition by its display name.
func (d *Driver) roleDefinitionID(ctx context.Context, client *armauthorization.RoleDefinitionsClient, scope, roleName string) (string, error) {
	pager := client.NewListPager(scope, &armauthorization.RoleDefinitionsClientListOptions{
		Filter: to.Ptr(fmt.Sprintf("roleName eq '%s'", roleName)),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("list role definitions %q: %w", roleName, err)
		}
		for _, rd := range page.Value {
			if rd != nil && rd.ID != nil {
				return *rd.ID, nil
			}
		}
	}
	return "", fmt.Errorf("role definition %q not found at %s", roleName, scope)
}

// resolveRoles resolves the role definitions referenced by the topology.
func (d *Driver) resolveRoles(ctx context.Context) (roleIDs, error) {
	client, err := armauthorization.NewRoleDefinitionsClient(d.cred, d.clientOptions)
	if err != nil {
		return roleIDs{}, fmt.Errorf("create role definitions client: %w", err)
	}
	scope := "/subscriptions/" + d.subscriptionID
	var roles roleIDs
	if roles.NetworkContributor, err = d.roleDefinitionID(ctx, client, scope, model.RoleNetworkContributor); err != nil {
		return roleIDs{}, err
	}
	if roles.AcrPull, err = d.roleDefinitionID(ctx, client, scope, model.RoleAcrPull); err != nil {
		return roleIDs{}, err
	}
	return roles, nil
}

// placeholderRoles stands in for role IDs when rendering without Azure access.
func placeholderRoles() roleIDs {
	return roleIDs{
		NetworkContributor: fmt.Sprintf(unresolvedRoleIDFormat, model.RoleNetworkContributor),
		AcrPull:            fmt.Sprintf(unresolvedRoleIDFormat, model.RoleAcrPull),
	}
}
