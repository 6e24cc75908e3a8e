package azure

import (
	"github.com/kanebernetes/aksstack/domain/model"
)

// Output keys of the subscription deployment. ARM does not preserve the case of
// output names, so readers compare upper-cased keys.
const (
	OutputTenantID            = "AZURE_TENANT_ID"
	OutputResourceGroupName   = "AZURE_RESOURCE_GROUP_NAME"
	OutputClusterName         = "AZURE_AKS_CLUSTER_NAME"
	OutputClusterID           = "AZURE_AKS_CLUSTER_ID"
	OutputSubnetID            = "AZURE_SUBNET_ID"
	OutputRegistryID          = "AZURE_ACR_ID"
	OutputRegistryLoginServer = "AZURE_ACR_LOGIN_SERVER"
	OutputWorkspaceID         = "AZURE_LOG_ANALYTICS_WORKSPACE_ID"
	OutputClientID            = "AZURE_CLIENT_ID"
)

// Template parameter names.
const (
	paramLocation          = "location"
	paramResourceGroupName = "resourceGroupName"
	paramTags              = "tags"
	paramKubernetesVersion = "kubernetesVersion"
	paramNodeCount         = "nodeCount"
	paramClientID          = "servicePrincipalClientId"
	paramClientSecret      = "servicePrincipalClientSecret"
	paramPrincipalObjectID = "servicePrincipalObjectId"
	paramSSHPublicKey      = "sshPublicKey"
	paramNetworkRoleID     = "networkContributorRoleId"
	paramNetworkAssignment = "networkContributorAssignmentName"
	paramAcrPullRoleID     = "acrPullRoleId"
	paramAcrPullAssignment = "acrPullAssignmentName"
)

const (
	topologyDeploymentName = "aksstack-topology"
	deploymentAPIVersion   = "2022-09-01"
	subscriptionSchema     = "https://schema.management.azure.com/schemas/2018-05-01/subscriptionDeploymentTemplate.json#"
	resourceGroupSchema    = "https://schema.management.azure.com/schemas/2019-04-01/deploymentTemplate.json#"
	templateContentVersion = "1.0.0.0"

	maskedParameterValue   = "[secure]"
	unresolvedRoleIDFormat = "<resolved at deployment: %s>"
)

// Resource types of the topology.
const (
	typeResourceGroup  = "Microsoft.Resources/resourceGroups"
	typeDeployment     = "Microsoft.Resources/deployments"
	typeVirtualNetwork = "Microsoft.Network/virtualNetworks"
	typeSubnet         = "Microsoft.Network/virtualNetworks/subnets"
	typeRegistry       = "Microsoft.ContainerRegistry/registries"
	typeWorkspace      = "Microsoft.OperationalInsights/workspaces"
	typeSolution       = "Microsoft.OperationsManagement/solutions"
	typeManagedCluster = "Microsoft.ContainerService/managedClusters"
	typeRoleAssignment = "Microsoft.Authorization/roleAssignments"
)

// parameterTypes lists each template parameter with its ARM type. Both the outer
// and the nested template declare the same set.
var parameterTypes = []struct{ name, typ string }{
	{paramLocation, "string"},
	{paramResourceGroupName, "string"},
	{paramTags, "object"},
	{paramKubernetesVersion, "string"},
	{paramNodeCount, "int"},
	{paramClientID, "string"},
	{paramClientSecret, "securestring"},
	{paramPrincipalObjectID, "string"},
	{paramSSHPublicKey, "string"},
	{paramNetworkRoleID, "string"},
	{paramNetworkAssignment, "string"},
	{paramAcrPullRoleID, "string"},
	{paramAcrPullAssignment, "string"},
}

func p(name string) string { return "[parameters('" + name + "')]" }

func declareParameters() map[string]any {
	out := make(map[string]any, len(parameterTypes))
	for _, pt := range parameterTypes {
		out[pt.name] = map[string]any{"type": pt.typ}
	}
	return out
}

// BuildTemplate returns the subscription-scope ARM template for the whole
// topology: the resource group and a nested deployment holding the network,
// registry, monitoring workspace, cluster and role assignments.
func BuildTemplate() map[string]any {
	nestedParams := make(map[string]any, len(parameterTypes))
	for _, pt := range parameterTypes {
		nestedParams[pt.name] = map[string]any{"value": p(pt.name)}
	}

	rgID := "[subscriptionResourceId('" + typeResourceGroup + "', parameters('" + paramResourceGroupName + "'))]"
	topologyRef := "reference(resourceId(parameters('" + paramResourceGroupName + "'), '" + typeDeployment + "', '" +
		topologyDeploymentName + "'), '" + deploymentAPIVersion + "').outputs"
	nestedOutput := func(name string) map[string]any {
		return map[string]any{"type": "string", "value": "[" + topologyRef + "." + name + ".value]"}
	}

	return map[string]any{
		"$schema":        subscriptionSchema,
		"contentVersion": templateContentVersion,
		"parameters":     declareParameters(),
		"resources": []any{
			map[string]any{
				"type":       typeResourceGroup,
				"apiVersion": deploymentAPIVersion,
				"name":       p(paramResourceGroupName),
				"location":   p(paramLocation),
				"tags":       p(paramTags),
			},
			map[string]any{
				"type":          typeDeployment,
				"apiVersion":    deploymentAPIVersion,
				"name":          topologyDeploymentName,
				"resourceGroup": p(paramResourceGroupName),
				"dependsOn":     []any{rgID},
				"properties": map[string]any{
					"mode":                        "Incremental",
					"expressionEvaluationOptions": map[string]any{"scope": "inner"},
					"parameters":                  nestedParams,
					"template":                    buildTopologyTemplate(),
				},
			},
		},
		"outputs": map[string]any{
			OutputTenantID:            map[string]any{"type": "string", "value": "[subscription().tenantId]"},
			OutputResourceGroupName:   map[string]any{"type": "string", "value": p(paramResourceGroupName)},
			OutputClusterName:         nestedOutput("clusterName"),
			OutputClusterID:           nestedOutput("clusterId"),
			OutputSubnetID:            nestedOutput("subnetId"),
			OutputRegistryID:          nestedOutput("registryId"),
			OutputRegistryLoginServer: nestedOutput("registryLoginServer"),
			OutputWorkspaceID:         nestedOutput("workspaceId"),
			OutputClientID:            map[string]any{"type": "string", "value": p(paramClientID)},
		},
	}
}

func resourceID(typ string, names ...string) string {
	s := "resourceId('" + typ + "'"
	for _, n := range names {
		s += ", '" + n + "'"
	}
	return s + ")"
}

// buildTopologyTemplate returns the resource-group scoped part of the graph.
func buildTopologyTemplate() map[string]any {
	vnetID := resourceID(typeVirtualNetwork, model.VirtualNetworkName)
	subnetID := resourceID(typeSubnet, model.VirtualNetworkName, model.SubnetName)
	registryID := resourceID(typeRegistry, model.RegistryName)
	workspaceID := resourceID(typeWorkspace, model.WorkspaceName)
	clusterID := resourceID(typeManagedCluster, model.ClusterName)
	solutionName := model.SolutionName + "(" + model.WorkspaceName + ")"

	endpoints := make([]any, 0, len(model.SubnetServiceEndpoints))
	for _, e := range model.SubnetServiceEndpoints {
		endpoints = append(endpoints, map[string]any{"service": e})
	}

	roleAssignment := func(nameParam, roleParam, scope, target string) map[string]any {
		return map[string]any{
			"type":       typeRoleAssignment,
			"apiVersion": "2022-04-01",
			"name":       p(nameParam),
			"scope":      scope,
			"dependsOn":  []any{"[" + target + "]"},
			"properties": map[string]any{
				"roleDefinitionId": p(roleParam),
				"principalId":      p(paramPrincipalObjectID),
				"principalType":    "ServicePrincipal",
			},
		}
	}

	return map[string]any{
		"$schema":        resourceGroupSchema,
		"contentVersion": templateContentVersion,
		"parameters":     declareParameters(),
		"resources": []any{
			map[string]any{
				"type":       typeVirtualNetwork,
				"apiVersion": "2023-09-01",
				"name":       model.VirtualNetworkName,
				"location":   p(paramLocation),
				"tags":       p(paramTags),
				"properties": map[string]any{
					"addressSpace": map[string]any{"addressPrefixes": []any{model.VirtualNetworkAddressSpace}},
				},
			},
			map[string]any{
				"type":       typeSubnet,
				"apiVersion": "2023-09-01",
				"name":       model.VirtualNetworkName + "/" + model.SubnetName,
				"dependsOn":  []any{"[" + vnetID + "]"},
				"properties": map[string]any{
					"addressPrefix":    model.SubnetAddressPrefix,
					"serviceEndpoints": endpoints,
				},
			},
			map[string]any{
				"type":       typeRegistry,
				"apiVersion": "2023-07-01",
				"name":       model.RegistryName,
				"location":   p(paramLocation),
				"tags":       p(paramTags),
				"sku":        map[string]any{"name": model.RegistrySKU},
				"properties": map[string]any{"adminUserEnabled": true},
			},
			map[string]any{
				"type":       typeWorkspace,
				"apiVersion": "2022-10-01",
				"name":       model.WorkspaceName,
				"location":   p(paramLocation),
				"tags":       p(paramTags),
				"properties": map[string]any{"sku": map[string]any{"name": model.WorkspaceSKU}},
			},
			map[string]any{
				"type":       typeSolution,
				"apiVersion": "2015-11-01-preview",
				"name":       solutionName,
				"location":   p(paramLocation),
				"tags":       p(paramTags),
				"dependsOn":  []any{"[" + workspaceID + "]"},
				"plan": map[string]any{
					"name":          solutionName,
					"product":       model.SolutionProduct,
					"publisher":     model.SolutionPublisher,
					"promotionCode": "",
				},
				"properties": map[string]any{"workspaceResourceId": "[" + workspaceID + "]"},
			},
			map[string]any{
				"type":       typeManagedCluster,
				"apiVersion": "2022-09-01",
				"name":       model.ClusterName,
				"location":   p(paramLocation),
				"tags":       p(paramTags),
				"dependsOn":  []any{"[" + subnetID + "]", "[" + workspaceID + "]"},
				"properties": map[string]any{
					"kubernetesVersion": p(paramKubernetesVersion),
					"dnsPrefix":         model.ClusterDNSPrefix,
					"enableRBAC":        true,
					"agentPoolProfiles": []any{map[string]any{
						"name":         model.NodePoolName,
						"mode":         "System",
						"osType":       "Linux",
						"type":         "VirtualMachineScaleSets",
						"count":        p(paramNodeCount),
						"vmSize":       model.NodeVMSize,
						"osDiskSizeGB": model.NodeOSDiskSizeGB,
						"vnetSubnetID": "[" + subnetID + "]",
					}},
					"linuxProfile": map[string]any{
						"adminUsername": model.LinuxAdminUsername,
						"ssh": map[string]any{"publicKeys": []any{
							map[string]any{"keyData": p(paramSSHPublicKey)},
						}},
					},
					"servicePrincipalProfile": map[string]any{
						"clientId": p(paramClientID),
						"secret":   p(paramClientSecret),
					},
					"networkProfile": map[string]any{
						"networkPlugin":    model.NetworkPlugin,
						"serviceCidr":      model.ServiceCIDR,
						"dnsServiceIP":     model.DNSServiceIP,
						"dockerBridgeCidr": model.DockerBridgeCIDR,
					},
					"addonProfiles": map[string]any{
						"omsagent": map[string]any{
							"enabled": true,
							"config":  map[string]any{"logAnalyticsWorkspaceResourceID": "[" + workspaceID + "]"},
						},
					},
				},
			},
			roleAssignment(paramNetworkAssignment, paramNetworkRoleID,
				typeVirtualNetwork+"/"+model.VirtualNetworkName+"/subnets/"+model.SubnetName, subnetID),
			roleAssignment(paramAcrPullAssignment, paramAcrPullRoleID,
				typeRegistry+"/"+model.RegistryName, registryID),
		},
		"outputs": map[string]any{
			"clusterName":         map[string]any{"type": "string", "value": model.ClusterName},
			"clusterId":           map[string]any{"type": "string", "value": "[" + clusterID + "]"},
			"subnetId":            map[string]any{"type": "string", "value": "[" + subnetID + "]"},
			"registryId":          map[string]any{"type": "string", "value": "[" + registryID + "]"},
			"registryLoginServer": map[string]any{"type": "string", "value": "[reference(" + registryID + ", '2023-07-01').loginServer]"},
			"workspaceId":         map[string]any{"type": "string", "value": "[" + workspaceID + "]"},
		},
	}
}

// roleIDs are the resolved role definition resource IDs.
type roleIDs struct {
	NetworkContributor string
	AcrPull            string
}

// buildParameters returns the parameter values for a plan.
func buildParameters(plan *model.Plan, roles roleIDs) map[string]any {
	st := plan.Settings
	tags := map[string]any{}
	for k, v := range st.Tags.Map() {
		tags[k] = v
	}
	principal := plan.Identity.ServicePrincipalObjectID
	return map[string]any{
		paramLocation:          st.Location,
		paramResourceGroupName: st.ResourceGroupName,
		paramTags:              tags,
		paramKubernetesVersion: st.KubernetesVersion,
		paramNodeCount:         st.NodeCount,
		paramClientID:          plan.Identity.ApplicationID,
		paramClientSecret:      plan.ClientSecret.Reveal(),
		paramPrincipalObjectID: principal,
		paramSSHPublicKey:      plan.SSHPublicKey,
		paramNetworkRoleID:     roles.NetworkContributor,
		paramNetworkAssignment: roleAssignmentName(st.ResourceGroupName, model.SubnetName, principal, model.RoleNetworkContributor),
		paramAcrPullRoleID:     roles.AcrPull,
		paramAcrPullAssignment: roleAssignmentName(st.ResourceGroupName, model.RegistryName, principal, model.RoleAcrPull),
	}
}

// wrapParameters converts plain values into the {"value": v} form ARM expects.
func wrapParameters(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = map[string]any{"value": v}
	}
	return out
}

// maskParameters replaces secure values for display.
func maskParameters(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	for _, pt := range parameterTypes {
		if pt.typ == "securestring" {
			out[pt.name] = maskedParameterValue
		}
	}
	return out
}
