package cli

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"github.com/kubev2v/vmware-inventory/internal/vsphere"
	"github.com/kubev2v/vmware-inventory/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// InventoryOptions implement the dynamic inventory contract of the
// automation controller: --list prints the whole document, --host one host.
type InventoryOptions struct {
	GlobalOptions
	List bool
	Host string
}

func DefaultInventoryOptions() *InventoryOptions {
	return &InventoryOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdInventory() *cobra.Command {
	o := DefaultInventoryOptions()
	cmd := &cobra.Command{
		Use:          "vmware-inventory [--list | --host NAME]",
		Short:        "Dynamic inventory of the virtual machines of a vCenter datacenter.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer o.Finish()
			if err := o.Complete(cmd, args); err != nil {
				o.printEmpty()
				return err
			}
			if err := o.Validate(args); err != nil {
				o.printEmpty()
				return err
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *InventoryOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.BoolVar(&o.List, "list", o.List, "Print the full inventory (default)")
	fs.StringVar(&o.Host, "host", o.Host, "Print the variables of a single host")
}

func (o *InventoryOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	if o.Host == "" {
		o.List = true
	}
	return nil
}

func (o *InventoryOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.Host != "" && o.List {
		return errors.New("--list and --host are mutually exclusive")
	}
	return o.Config.ValidateInventory()
}

// Run prints the inventory. When vCenter cannot be read the document of an
// empty run is printed before the error is returned, ungrouped included.
func (o *InventoryOptions) Run(ctx context.Context, args []string) error {
	doc, err := o.collect(ctx)
	if err != nil {
		zap.S().Named("inventory").Errorf("failed to build inventory: %s", err)
		o.printEmpty()
		return err
	}

	metrics.RecordDocument(doc)
	if o.Host != "" {
		return printJSON(o.out, doc.Host(o.Host))
	}
	return printJSON(o.out, doc)
}

func (o *InventoryOptions) collect(ctx context.Context) (*inventory.Document, error) {
	cfg := o.Config
	client := vsphere.NewClient(vsphere.Credentials{
		URL:        cfg.VCenterURL(),
		Username:   cfg.VCenter.User,
		Password:   cfg.VCenter.Password,
		Datacenter: cfg.VCenter.Datacenter,
		Insecure:   !cfg.VCenter.ValidateCerts,
		BatchSize:  cfg.VCenter.BatchSize,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			zap.S().Named("inventory").Debugf("logout failed: %s", err)
		}
	}()

	if tags, err := client.Tags(); err == nil {
		client.WithTags(tags)
	}

	raws, err := client.VirtualMachines(ctx)
	if err != nil {
		return nil, err
	}

	doc, stats, err := inventory.Synthesize(ctx, raws, inventory.Options{
		Normalize: inventory.NormalizeOptions{TemplatePrefix: cfg.VCenter.TemplatePrefix},
		Assemble: inventory.AssembleOptions{
			TagGroups:   cfg.VCenter.TagGroups,
			VCenterHost: cfg.VCenter.Host,
			Datacenter:  client.Datacenter(),
			RunID:       uuid.NewString(),
		},
	})
	if err != nil {
		return nil, err
	}

	metrics.IncreaseVMsProcessedMetric(metrics.ResultEmitted, stats.Emitted)
	metrics.IncreaseVMsProcessedMetric(metrics.ResultSkipped, stats.Skipped)
	zap.S().Named("inventory").Infow("inventory generated", "vms", stats.Emitted, "skipped", stats.Skipped, "groups", len(doc.Order))
	return doc, nil
}

func (o *InventoryOptions) printEmpty() {
	if o.Host != "" {
		_ = printJSON(o.out, inventory.HostVars{})
		return
	}
	opts := inventory.AssembleOptions{RunID: uuid.NewString()}
	if o.Config != nil {
		opts.VCenterHost = o.Config.VCenter.Host
		opts.Datacenter = o.Config.VCenter.Datacenter
	}
	_ = printJSON(o.out, inventory.Assemble(nil, opts))
}
