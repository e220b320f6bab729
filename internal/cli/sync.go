package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/kubev2v/vmware-inventory/internal/awx"
	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"github.com/kubev2v/vmware-inventory/internal/netbox"
	"github.com/kubev2v/vmware-inventory/internal/reconcile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type SyncOptions struct {
	GlobalOptions
	DryRun   bool
	FromFile string
	Output   string
}

func DefaultSyncOptions() *SyncOptions {
	return &SyncOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdSync() *cobra.Command {
	o := DefaultSyncOptions()
	cmd := &cobra.Command{
		Use:          "sync [flags]",
		Short:        "Reconcile the AWX inventory into NetBox",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer o.Finish()
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *SyncOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.BoolVar(&o.DryRun, "dry-run", o.DryRun, "Report what would be synced without writing to NetBox")
	fs.StringVar(&o.FromFile, "from-file", o.FromFile, "Reconcile a previously generated inventory document instead of reading AWX")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Report format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *SyncOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if err := validateOutput(o.Output); err != nil {
		return err
	}
	return o.Config.ValidateSync(o.FromFile != "")
}

func (o *SyncOptions) Run(ctx context.Context, args []string) error {
	src, err := o.source()
	if err != nil {
		return err
	}

	target, err := netbox.NewClient(o.Config.NetBox.URL, o.Config.NetBox.Token, o.Config.NewHTTPClient("netbox"))
	if err != nil {
		return err
	}

	nb := o.Config.NetBox
	r := reconcile.New(target, reconcile.Options{
		DefaultTenant:      nb.DefaultTenant,
		DefaultSite:        nb.DefaultSite,
		DefaultClusterType: nb.DefaultClusterType,
		DefaultRole:        nb.DefaultRole,
		DefaultCluster:     nb.DefaultCluster,
		Workers:            nb.Workers,
		DryRun:             o.DryRun,
		RunID:              uuid.NewString(),
	})

	report, err := r.Run(ctx, src)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return printStructured(o.out, report, o.Output)
}

func (o *SyncOptions) source() (reconcile.HostSource, error) {
	if o.FromFile != "" {
		data, err := os.ReadFile(o.FromFile)
		if err != nil {
			return nil, fmt.Errorf("reading inventory document: %w", err)
		}
		doc := inventory.NewDocument()
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("decoding inventory document %s: %w", o.FromFile, err)
		}
		return reconcile.NewDocumentSource(doc), nil
	}

	client, err := awx.NewClient(o.Config.AWX.URL, o.Config.AWX.Token, o.Config.NewHTTPClient("awx"))
	if err != nil {
		return nil, err
	}
	return reconcile.NewAWXSource(client, o.Config.AWX.InventoryID), nil
}
