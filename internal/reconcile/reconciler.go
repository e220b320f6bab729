package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"github.com/kubev2v/vmware-inventory/internal/netbox"
	"github.com/kubev2v/vmware-inventory/pkg/metrics"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	roleColor     = "2196f3"
	defaultMask   = "/24"
	defaultVCPUs  = 1
	defaultMemory = 1024

	commentHeader = "Imported from AWX Dynamic Inventory"
	timeLayout    = "2006-01-02 15:04:05"
)

// placeholderNames are host names that never describe a real VM.
var placeholderNames = []string{"localhost", "N/A"}

var errMissingCluster = errors.New("cluster could not be resolved")

// Target is the asset-management API the reconciler writes to.
type Target interface {
	First(ctx context.Context, endpoint string, filter url.Values) (*netbox.Object, error)
	Create(ctx context.Context, endpoint string, payload any) (*netbox.Object, error)
	Update(ctx context.Context, endpoint string, id int, payload any) (*netbox.Object, error)
}

// Options are the defaults applied to every synced VM.
type Options struct {
	DefaultTenant      string
	DefaultSite        string
	DefaultClusterType string
	DefaultRole        string
	DefaultCluster     string

	// Workers is the number of hosts synced concurrently.
	Workers int

	// DryRun reads hosts and reports what would be synced without writing.
	DryRun bool
	RunID  string
	Now    func() time.Time
}

// Reconciler upserts inventory hosts into the asset-management system.
type Reconciler struct {
	target Target
	opts   Options
	logger *zap.SugaredLogger

	// per-run caches, keyed by natural key
	mu        sync.Mutex
	clusters  map[string]*int
	platforms map[string]*int
	inflight  singleflight.Group
}

func New(target Target, opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Reconciler{
		target: target,
		opts:   opts,
		logger: zap.S().Named("reconciler"),
	}
}

// shared holds the ids of the entities every VM refers to. A nil id means
// the entity could not be resolved.
type shared struct {
	tenant      *int
	site        *int
	clusterType *int
	role        *int
}

// Run fetches the hosts from src and reconciles them. Only a source failure
// or a cancelled context returns an error; per-host problems end up in the report.
func (r *Reconciler) Run(ctx context.Context, src HostSource) (*Report, error) {
	start := r.opts.Now()
	r.logger.Info("starting inventory sync")

	hosts, err := src.Hosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching hosts: %w", err)
	}

	report := newReport(r.opts.RunID, len(hosts), r.opts.DryRun)
	defer func() {
		report.Duration = time.Since(start)
		report.DurationSeconds = report.Duration.Seconds()
		metrics.ObserveSyncDuration(report.Duration)
	}()

	if r.opts.DryRun {
		for _, h := range hosts {
			if name, ok := validHost(h); ok {
				report.synced(name)
			} else {
				report.skipped(h.Name)
			}
		}
		r.logger.Infof("dry run: %d hosts would be synced, %d skipped", report.Synced, report.Skipped)
		report.record()
		return report, nil
	}

	r.clusters = map[string]*int{}
	r.platforms = map[string]*int{}
	deps := r.resolveShared(ctx)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.opts.Workers)
	for _, h := range hosts {
		if ctx.Err() != nil {
			break
		}

		name, ok := validHost(h)
		if !ok {
			mu.Lock()
			report.skipped(h.Name)
			mu.Unlock()
			continue
		}

		vars := h.Vars
		g.Go(func() error {
			err := r.syncHost(ctx, name, vars, deps)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Errorf("error syncing VM %s: %s", name, err)
				report.failed(name)
				return nil
			}
			report.synced(name)
			return nil
		})
	}
	_ = g.Wait()

	report.sort()
	report.record()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	r.logger.Infow("sync completed", "total", report.Total, "synced", report.Synced, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

func (r *Reconciler) resolveShared(ctx context.Context) shared {
	var deps shared
	deps.tenant = r.createOrGet(ctx, netbox.EndpointTenants, url.Values{"slug": {Slug(r.opts.DefaultTenant)}},
		netbox.Tenant{Name: r.opts.DefaultTenant, Slug: Slug(r.opts.DefaultTenant)})
	deps.site = r.createOrGet(ctx, netbox.EndpointSites, url.Values{"slug": {SiteSlug(r.opts.DefaultSite)}},
		netbox.Site{Name: r.opts.DefaultSite, Slug: SiteSlug(r.opts.DefaultSite), Status: netbox.StatusActive, Tenant: deps.tenant})
	deps.clusterType = r.createOrGet(ctx, netbox.EndpointClusterTypes, url.Values{"slug": {Slug(r.opts.DefaultClusterType)}},
		netbox.ClusterType{Name: r.opts.DefaultClusterType, Slug: Slug(r.opts.DefaultClusterType)})
	deps.role = r.createOrGet(ctx, netbox.EndpointDeviceRoles, url.Values{"slug": {Slug(r.opts.DefaultRole)}},
		netbox.DeviceRole{Name: r.opts.DefaultRole, Slug: Slug(r.opts.DefaultRole), Color: roleColor, VMRole: true})
	return deps
}

// createOrGet looks the entity up by its natural key and creates it when
// absent. Any failure is logged and yields nil.
func (r *Reconciler) createOrGet(ctx context.Context, endpoint string, key url.Values, payload any) *int {
	obj, err := r.target.First(ctx, endpoint, key)
	if err == nil {
		return &obj.ID
	}
	if !errors.Is(err, netbox.ErrNotFound) {
		r.logger.Warnf("lookup on %s failed, trying to create: %s", endpoint, err)
	}

	obj, err = r.target.Create(ctx, endpoint, payload)
	if err != nil {
		r.logger.Warnf("could not create %s %s: %s", endpoint, key.Encode(), err)
		return nil
	}
	return &obj.ID
}

func (r *Reconciler) cluster(ctx context.Context, name string, deps shared) *int {
	return r.cached(r.clusters, netbox.EndpointClusters, name, func() *int {
		if deps.clusterType == nil {
			r.logger.Warnf("no cluster type available, cannot resolve cluster %s", name)
			return nil
		}
		return r.createOrGet(ctx, netbox.EndpointClusters, url.Values{"name": {name}},
			netbox.Cluster{Name: name, Type: *deps.clusterType, Site: deps.site, Tenant: deps.tenant})
	})
}

func (r *Reconciler) platform(ctx context.Context, guestOS string) *int {
	slug := PlatformSlug(guestOS)
	if slug == "" {
		return nil
	}
	return r.cached(r.platforms, netbox.EndpointPlatforms, slug, func() *int {
		return r.createOrGet(ctx, netbox.EndpointPlatforms, url.Values{"slug": {slug}},
			netbox.Platform{Name: guestOS, Slug: slug})
	})
}

// cached resolves key once per run. Concurrent callers for the same key
// share a single lookup so the entity is never created twice.
func (r *Reconciler) cached(cache map[string]*int, endpoint, key string, resolve func() *int) *int {
	r.mu.Lock()
	id, ok := cache[key]
	r.mu.Unlock()
	if ok {
		return id
	}

	v, _, _ := r.inflight.Do(endpoint+"/"+key, func() (any, error) {
		id := resolve()
		r.mu.Lock()
		cache[key] = id
		r.mu.Unlock()
		return id, nil
	})
	return v.(*int)
}

func (r *Reconciler) syncHost(ctx context.Context, name string, vars inventory.HostVars, deps shared) error {
	clusterName := vars.String(inventory.VarCluster)
	if clusterName == "" {
		clusterName = r.opts.DefaultCluster
	}
	clusterID := r.cluster(ctx, clusterName, deps)
	if clusterID == nil {
		return fmt.Errorf("%w: %s", errMissingCluster, clusterName)
	}

	var platformID *int
	if guestOS := vars.String(inventory.VarGuestOS); guestOS != "" {
		platformID = r.platform(ctx, guestOS)
	}

	payload := netbox.VirtualMachine{
		Name:     name,
		Cluster:  *clusterID,
		Role:     deps.role,
		Tenant:   deps.tenant,
		Platform: platformID,
		VCPUs:    intOr(vars, inventory.VarCPUCount, defaultVCPUs),
		Memory:   intOr(vars, inventory.VarMemoryMB, defaultMemory),
		Status:   vmStatus(vars.String(inventory.VarPowerState)),
		Comments: r.comments(vars),
	}

	existing, err := r.target.First(ctx, netbox.EndpointVirtualMachines, url.Values{"name": {name}})
	switch {
	case err == nil:
		if _, err := r.target.Update(ctx, netbox.EndpointVirtualMachines, existing.ID, payload); err != nil {
			return err
		}
		r.logger.Infof("updated VM: %s", name)
	case errors.Is(err, netbox.ErrNotFound):
		if _, err := r.target.Create(ctx, netbox.EndpointVirtualMachines, payload); err != nil {
			return err
		}
		r.logger.Infof("created VM: %s", name)
	default:
		return err
	}

	r.syncIPs(ctx, name, vars.Strings(inventory.VarIPAddresses), deps.tenant)
	return nil
}

// syncIPs creates missing addresses. Existing ones are left as they are and
// failures never fail the VM.
func (r *Reconciler) syncIPs(ctx context.Context, vmName string, addresses []string, tenant *int) {
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" || funk.ContainsString(placeholderNames, addr) {
			continue
		}
		if !strings.Contains(addr, "/") {
			addr += defaultMask
		}

		_, err := r.target.First(ctx, netbox.EndpointIPAddresses, url.Values{"address": {addr}})
		if err == nil {
			continue
		}
		if !errors.Is(err, netbox.ErrNotFound) {
			r.logger.Warnf("error looking up IP %s for VM %s: %s", addr, vmName, err)
			continue
		}

		_, err = r.target.Create(ctx, netbox.EndpointIPAddresses, netbox.IPAddress{
			Address:     addr,
			Status:      netbox.StatusActive,
			Tenant:      tenant,
			Description: fmt.Sprintf("IP address for %s", vmName),
		})
		if err != nil {
			r.logger.Warnf("error syncing IP %s for VM %s: %s", addr, vmName, err)
			continue
		}
		r.logger.Infof("created IP address: %s for VM: %s", addr, vmName)
	}
}

// comments renders the comment block that replaces the VM's comments on every run.
func (r *Reconciler) comments(vars inventory.HostVars) string {
	lines := []string{commentHeader}
	for _, field := range []struct{ label, key string }{
		{"UUID", inventory.VarUUID},
		{"Folder", inventory.VarFolder},
		{"Environment", inventory.VarEnvironment},
		{"Criticality", inventory.VarCriticality},
		{"Guest Family", inventory.VarGuestFamily},
	} {
		if v := vars.String(field.key); v != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", field.label, v))
		}
	}
	lines = append(lines, "Last Updated: "+r.opts.Now().Format(timeLayout))
	return strings.Join(lines, "\n")
}

// validHost returns the name to sync under, or false when the record is not a VM.
func validHost(h Host) (string, bool) {
	if h.Name == "" || funk.ContainsString(placeholderNames, h.Name) {
		return h.Name, false
	}
	return h.Name, h.Vars.String(inventory.VarName) != ""
}

func vmStatus(powerState string) string {
	if powerState == "poweredOn" {
		return netbox.StatusActive
	}
	return netbox.StatusOffline
}

func intOr(vars inventory.HostVars, key string, def int) int {
	if v, ok := vars.Int(key); ok {
		return v
	}
	return def
}
