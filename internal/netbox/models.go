package netbox

// Endpoints, relative to /api/.
const (
	EndpointTenants         = "tenancy/tenants"
	EndpointSites           = "dcim/sites"
	EndpointClusterTypes    = "virtualization/cluster-types"
	EndpointClusters        = "virtualization/clusters"
	EndpointDeviceRoles     = "dcim/device-roles"
	EndpointPlatforms       = "dcim/platforms"
	EndpointVirtualMachines = "virtualization/virtual-machines"
	EndpointIPAddresses     = "ipam/ip-addresses"
)

const (
	StatusActive  = "active"
	StatusOffline = "offline"
)

// Object is the subset of any NetBox object the sync needs back.
type Object struct {
	ID      int    `json:"id"`
	Name    string `json:"name,omitempty"`
	Slug    string `json:"slug,omitempty"`
	Address string `json:"address,omitempty"`
	Display string `json:"display,omitempty"`
}

type Tenant struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required"`
}

type Site struct {
	Name   string `json:"name" validate:"required"`
	Slug   string `json:"slug" validate:"required"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=planned staging active decommissioning retired"`
	Tenant *int   `json:"tenant,omitempty"`
}

type ClusterType struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required"`
}

type Cluster struct {
	Name   string `json:"name" validate:"required"`
	Type   int    `json:"type" validate:"required"`
	Site   *int   `json:"site,omitempty"`
	Tenant *int   `json:"tenant,omitempty"`
}

// DeviceRole is a device role usable by virtual machines.
type DeviceRole struct {
	Name   string `json:"name" validate:"required"`
	Slug   string `json:"slug" validate:"required"`
	Color  string `json:"color" validate:"required,len=6,hexadecimal"`
	VMRole bool   `json:"vm_role"`
}

type Platform struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required"`
}

// VirtualMachine is used both to create a VM and to partially update it.
type VirtualMachine struct {
	Name     string `json:"name" validate:"required"`
	Cluster  int    `json:"cluster" validate:"required"`
	Role     *int   `json:"role,omitempty"`
	Tenant   *int   `json:"tenant,omitempty"`
	Platform *int   `json:"platform,omitempty"`
	VCPUs    int    `json:"vcpus" validate:"min=0"`
	Memory   int    `json:"memory" validate:"min=0"`
	Status   string `json:"status" validate:"required,oneof=active offline"`
	Comments string `json:"comments"`
}

type IPAddress struct {
	Address     string `json:"address" validate:"required,cidr"`
	Status      string `json:"status" validate:"required"`
	Tenant      *int   `json:"tenant,omitempty"`
	Description string `json:"description,omitempty"`
}
