package azure

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUIDv5 namespace for role assignment names. Must never change; existing
// assignments are matched by name.
var roleAssignmentNamespace = uuid.MustParse("6f3c1c52-2f4e-5b8a-9d0e-4b1c7a2e9f10")

// roleAssignmentName returns a stable GUID for (resource group, target, principal, role).
func roleAssignmentName(resourceGroup, target, principalID, roleName string) string {
	input := strings.ToLower(strings.Join([]string{resourceGroup, target, principalID, roleName}, "|"))
	return uuid.NewSHA1(roleAssignmentNamespace, []byte(input)).String()
}

// deploymentStackName returns the subscription deployment stack name of a stack.
func deploymentStackName(project, stack string) string {
	return fmt.Sprintf("%s_%s", project, stack)
}

// stackTagValue is stamped on the deployment stack for discovery.
func stackTagValue(project, stack string) string {
	return project + "/" + stack
}
