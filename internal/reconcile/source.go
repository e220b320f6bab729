package reconcile

import (
	"context"

	"github.com/kubev2v/vmware-inventory/internal/awx"
	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"go.uber.org/zap"
)

// Host is one record handed to the reconciler: its inventory name and the
// variables known for it.
type Host struct {
	Name string
	Vars inventory.HostVars
}

// HostSource yields the records to reconcile. An error aborts the run.
type HostSource interface {
	Hosts(ctx context.Context) ([]Host, error)
}

// Controller is the part of the automation controller API the sync reads.
type Controller interface {
	InventoryHosts(ctx context.Context, inventoryID int) ([]awx.Host, error)
	HostVariables(ctx context.Context, hostID int) (map[string]any, error)
}

// AWXSource reads hosts and their variables from an AWX inventory.
type AWXSource struct {
	client      Controller
	inventoryID int
}

func NewAWXSource(client Controller, inventoryID int) *AWXSource {
	return &AWXSource{client: client, inventoryID: inventoryID}
}

// Hosts fetches every page of the inventory first. A failed variable fetch
// leaves the host with empty variables, which the validity filter then skips.
func (s *AWXSource) Hosts(ctx context.Context) ([]Host, error) {
	awxHosts, err := s.client.InventoryHosts(ctx, s.inventoryID)
	if err != nil {
		return nil, err
	}

	logger := zap.S().Named("awx_source")
	hosts := make([]Host, 0, len(awxHosts))
	for _, h := range awxHosts {
		vars, err := s.client.HostVariables(ctx, h.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warnf("error fetching variables for host %d: %s", h.ID, err)
			vars = map[string]any{}
		}
		hosts = append(hosts, Host{Name: h.Name, Vars: inventory.HostVars(vars)})
	}
	return hosts, nil
}

// DocumentSource reconciles a previously generated inventory document.
type DocumentSource struct {
	doc *inventory.Document
}

func NewDocumentSource(doc *inventory.Document) *DocumentSource {
	return &DocumentSource{doc: doc}
}

func (s *DocumentSource) Hosts(_ context.Context) ([]Host, error) {
	names := s.doc.Names()
	hosts := make([]Host, 0, len(names))
	for _, name := range names {
		hosts = append(hosts, Host{Name: name, Vars: s.doc.Host(name)})
	}
	return hosts, nil
}
