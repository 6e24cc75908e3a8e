package model

import "time"

// Fixed topology. These values are not configurable.
const (
	DefaultResourceGroupName = "kanebernetes"
	VirtualNetworkName       = "kanebernetes"
	SubnetName               = "kanebernetes"
	ClusterName              = "kanebernetes"
	ApplicationDisplayName   = "kanebernetes"
	RegistryName             = "containers"
	WorkspaceName            = "kanebernetesloganalytics"

	VirtualNetworkAddressSpace = "10.0.0.0/8"
	SubnetAddressPrefix        = "10.240.0.0/16"

	RegistrySKU       = "Standard"
	WorkspaceSKU      = "PerGB2018"
	SolutionName      = "ContainerInsights"
	SolutionProduct   = "OMSGallery/ContainerInsights"
	SolutionPublisher = "Microsoft"

	ClusterDNSPrefix    = "dns"
	NodePoolName        = "aksagentpool"
	NodeVMSize          = "Standard_D2_v2"
	NodeOSDiskSizeGB    = 30
	LinuxAdminUsername  = "aksuser"
	NetworkPlugin       = "azure"
	ServiceCIDR         = "10.2.0.0/24"
	DNSServiceIP        = "10.2.0.10"
	DockerBridgeCIDR    = "172.17.0.1/16"
	SSHKeyBits          = 4096
	PasswordDisplayName = "aksstack"

	RoleNetworkContributor = "Network Contributor"
	RoleAcrPull            = "AcrPull"
)

// SubnetServiceEndpoints lists the service endpoints enabled on the cluster subnet.
var SubnetServiceEndpoints = []string{"Microsoft.KeyVault", "Microsoft.Sql"}

// PasswordEndDate is the expiry of the service principal credential.
var PasswordEndDate = time.Date(2099, time.January, 1, 0, 0, 0, 0, time.UTC)

// In-cluster resources.
const (
	ClusterIssuerName       = "letsencrypt-prod"
	ClusterIssuerSecretName = "letsencrypt-prod"
	AcmeServerURL           = "https://acme-v02.api.letsencrypt.org/directory"
	CertificateName         = "tls-secret"
	CertificateSecretName   = "tls-secret"
	IngressClassName        = "nginx"
	SQLCredentialsSecret    = "sqlserver-credentials"
	PodIdentityName         = "kanebernetes"
	PodIdentitySecretName   = "kanebernetes-sp"
)
