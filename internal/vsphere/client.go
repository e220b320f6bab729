package vsphere

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

const defaultBatchSize = 50

var (
	ErrNotConnected       = errors.New("vCenter client is not connected")
	ErrDatacenterNotFound = errors.New("datacenter not found")
)

// vmProperties is everything the normalizer reads from a VirtualMachine.
var vmProperties = []string{
	"name",
	"parent",
	"config.template",
	"config.uuid",
	"config.guestFullName",
	"config.hardware.device",
	"summary.config",
	"runtime.powerState",
	"runtime.host",
	"guest.guestFamily",
	"guest.hostName",
	"guest.toolsStatus",
	"guest.net",
}

// Credentials holds the vCenter connection info.
type Credentials struct {
	// URL is the SDK endpoint, e.g. https://vcenter.example.com/sdk
	URL        string
	Username   string
	Password   string
	Datacenter string
	Insecure   bool
	BatchSize  int
}

// Client enumerates the VMs of one datacenter.
type Client struct {
	creds      Credentials
	client     *govmomi.Client
	datacenter *object.Datacenter
	tags       TagReader
	logger     *zap.SugaredLogger
}

func NewClient(creds Credentials) *Client {
	if creds.BatchSize <= 0 {
		creds.BatchSize = defaultBatchSize
	}
	return &Client{
		creds:  creds,
		logger: zap.S().Named("vsphere"),
	}
}

// WithTags attaches a tag reader. Without one every VM is reported untagged.
func (c *Client) WithTags(tags TagReader) *Client {
	c.tags = tags
	return c
}

// Connect logs into vCenter and resolves the configured datacenter.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.creds.URL)
	if err != nil {
		return fmt.Errorf("invalid vCenter URL %q: %w", c.creds.URL, err)
	}
	u.User = url.UserPassword(c.creds.Username, c.creds.Password)

	client, err := govmomi.NewClient(ctx, u, c.creds.Insecure)
	if err != nil {
		return connectError(u.Host, err)
	}
	c.client = client

	finder := find.NewFinder(client.Client, true)
	dc, err := finder.Datacenter(ctx, c.creds.Datacenter)
	if err != nil {
		_ = client.Logout(ctx)
		c.client = nil
		var notFound *find.NotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %q", ErrDatacenterNotFound, c.creds.Datacenter)
		}
		return fmt.Errorf("error accessing datacenter %q: %w", c.creds.Datacenter, err)
	}
	c.datacenter = dc

	c.logger.Infow("connected to vCenter", "host", u.Host, "datacenter", c.creds.Datacenter)
	return nil
}

func connectError(host string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("connection refused to vCenter at %s: %w", host, err)
	case strings.Contains(msg, "no such host"):
		return fmt.Errorf("cannot resolve vCenter hostname %q: %w", host, err)
	case strings.Contains(msg, "Cannot complete login"), strings.Contains(msg, "401"):
		return fmt.Errorf("authentication to vCenter %s failed: %w", host, err)
	case strings.Contains(msg, "x509"), strings.Contains(msg, "certificate"):
		return fmt.Errorf("certificate error connecting to %s (set VMWARE_VALIDATE_CERTS=false to skip verification): %w", host, err)
	}
	return fmt.Errorf("failed to connect to vCenter at %s: %w", host, err)
}

// Disconnect closes the vCenter session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	err := c.client.Logout(ctx)
	c.client = nil
	return err
}

// Datacenter is the name of the resolved datacenter.
func (c *Client) Datacenter() string {
	if c.datacenter == nil {
		return c.creds.Datacenter
	}
	return c.datacenter.Name()
}

// VirtualMachines returns every VM (templates included) below the
// datacenter's VM folder. Properties are fetched in batches.
func (c *Client) VirtualMachines(ctx context.Context) ([]inventory.RawVM, error) {
	if c.client == nil || c.datacenter == nil {
		return nil, ErrNotConnected
	}

	folders, err := c.datacenter.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing datacenter folders: %w", err)
	}

	refs, err := c.vmRefs(ctx, folders.VmFolder.Reference())
	if err != nil {
		return nil, err
	}

	placement, err := c.buildPlacement(ctx)
	if err != nil {
		return nil, err
	}

	tags := c.readTags(ctx, refs)

	pc := property.DefaultCollector(c.client.Client)
	raws := make([]inventory.RawVM, 0, len(refs))
	for start := 0; start < len(refs); start += c.creds.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+c.creds.BatchSize, len(refs))

		var vms []mo.VirtualMachine
		if err := pc.Retrieve(ctx, refs[start:end], vmProperties, &vms); err != nil {
			return nil, fmt.Errorf("retrieving VM properties: %w", err)
		}
		for _, vm := range vms {
			raw := toRaw(vm, placement.of(vm, c.Datacenter()))
			raw.Tags = tags[vm.Self.Value]
			raws = append(raws, raw)
		}

		c.logger.Infof("processed %d/%d VMs", end, len(refs))
	}

	return raws, nil
}

func (c *Client) vmRefs(ctx context.Context, root types.ManagedObjectReference) ([]types.ManagedObjectReference, error) {
	m := view.NewManager(c.client.Client)
	v, err := m.CreateContainerView(ctx, root, []string{"VirtualMachine"}, true)
	if err != nil {
		return nil, fmt.Errorf("creating VM container view: %w", err)
	}
	defer func() { _ = v.Destroy(ctx) }()

	var named []mo.VirtualMachine
	if err := v.Retrieve(ctx, []string{"VirtualMachine"}, []string{"name"}, &named); err != nil {
		return nil, fmt.Errorf("listing VMs: %w", err)
	}

	refs := make([]types.ManagedObjectReference, 0, len(named))
	for _, vm := range named {
		refs = append(refs, vm.Self)
	}
	return refs, nil
}

func (c *Client) readTags(ctx context.Context, refs []types.ManagedObjectReference) map[string][]inventory.Tag {
	if c.tags == nil || len(refs) == 0 {
		return map[string][]inventory.Tag{}
	}
	tags, err := c.tags.TagsFor(ctx, refs)
	if err != nil {
		c.logger.Warnw("failed to read VM tags, continuing without them", "error", err)
		return map[string][]inventory.Tag{}
	}
	return tags
}

// placementIndex resolves host -> cluster and folder names for the datacenter.
type placementIndex struct {
	hostCluster map[string]string
	folders     map[string]string
}

func (c *Client) buildPlacement(ctx context.Context) (*placementIndex, error) {
	m := view.NewManager(c.client.Client)
	v, err := m.CreateContainerView(ctx, c.datacenter.Reference(), []string{"HostSystem", "ClusterComputeResource", "Folder"}, true)
	if err != nil {
		return nil, fmt.Errorf("creating placement container view: %w", err)
	}
	defer func() { _ = v.Destroy(ctx) }()

	var clusters []mo.ClusterComputeResource
	if err := v.Retrieve(ctx, []string{"ClusterComputeResource"}, []string{"name"}, &clusters); err != nil {
		return nil, fmt.Errorf("listing clusters: %w", err)
	}
	clusterNames := make(map[string]string, len(clusters))
	for _, cl := range clusters {
		clusterNames[cl.Self.Value] = cl.Name
	}

	var hosts []mo.HostSystem
	if err := v.Retrieve(ctx, []string{"HostSystem"}, []string{"parent"}, &hosts); err != nil {
		return nil, fmt.Errorf("listing hosts: %w", err)
	}
	idx := &placementIndex{
		hostCluster: make(map[string]string, len(hosts)),
		folders:     map[string]string{},
	}
	for _, h := range hosts {
		if h.Parent == nil || h.Parent.Type != "ClusterComputeResource" {
			continue
		}
		if name, ok := clusterNames[h.Parent.Value]; ok {
			idx.hostCluster[h.Self.Value] = name
		}
	}

	var folders []mo.Folder
	if err := v.Retrieve(ctx, []string{"Folder"}, []string{"name"}, &folders); err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	for _, f := range folders {
		idx.folders[f.Self.Value] = f.Name
	}

	return idx, nil
}

func (p *placementIndex) of(vm mo.VirtualMachine, datacenter string) *inventory.RawPlacement {
	placement := &inventory.RawPlacement{Datacenter: datacenter}
	if vm.Runtime.Host != nil {
		placement.Cluster = p.hostCluster[vm.Runtime.Host.Value]
	}
	if vm.Parent != nil && vm.Parent.Type == "Folder" {
		placement.Folder = p.folders[vm.Parent.Value]
	}
	return placement
}

// toRaw copies the retrieved properties into the platform-neutral record.
// Missing nested structures stay nil.
func toRaw(vm mo.VirtualMachine, placement *inventory.RawPlacement) inventory.RawVM {
	raw := inventory.RawVM{
		Name:      vm.Name,
		Placement: placement,
		Summary: &inventory.RawSummary{
			Template: vm.Summary.Config.Template,
			NumCPU:   vm.Summary.Config.NumCpu,
			MemoryMB: vm.Summary.Config.MemorySizeMB,
		},
	}

	if vm.Config != nil {
		raw.Config = &inventory.RawConfig{
			Template:      vm.Config.Template,
			UUID:          vm.Config.Uuid,
			GuestFullName: vm.Config.GuestFullName,
		}
		for _, device := range vm.Config.Hardware.Device {
			if disk, ok := device.(*types.VirtualDisk); ok {
				raw.Config.Disks = append(raw.Config.Disks, inventory.RawDisk{CapacityKB: disk.CapacityInKB})
			}
		}
	}

	if vm.Runtime.PowerState != "" {
		raw.Runtime = &inventory.RawRuntime{PowerState: string(vm.Runtime.PowerState)}
	}

	if vm.Guest != nil {
		raw.Guest = &inventory.RawGuest{
			GuestFamily: vm.Guest.GuestFamily,
			HostName:    vm.Guest.HostName,
			ToolsStatus: string(vm.Guest.ToolsStatus),
		}
		for _, nic := range vm.Guest.Net {
			raw.Guest.NICs = append(raw.Guest.NICs, inventory.RawNIC{IPAddresses: nic.IpAddress})
		}
	}

	return raw
}
