package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/kubev2v/vmware-inventory/internal/awx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type HostInfoOptions struct {
	GlobalOptions
	Output string
}

// HostInfo is everything AWX knows about one host.
type HostInfo struct {
	Host      *awx.Host      `json:"host"`
	Variables map[string]any `json:"variables"`
	Facts     map[string]any `json:"facts"`
	Groups    []string       `json:"groups"`
}

func DefaultHostInfoOptions() *HostInfoOptions {
	return &HostInfoOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdHostInfo() *cobra.Command {
	o := DefaultHostInfoOptions()
	cmd := &cobra.Command{
		Use:          "host-info NAME",
		Short:        "Show the AWX record, variables, facts and groups of a host",
		Args:         cobra.ExactArgs(1),
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

func (o *HostInfoOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *HostInfoOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if err := validateOutput(o.Output); err != nil {
		return err
	}
	return o.Config.ValidateAWX()
}

func (o *HostInfoOptions) Run(ctx context.Context, args []string) error {
	client, err := awx.NewClient(o.Config.AWX.URL, o.Config.AWX.Token, o.Config.NewHTTPClient("awx"))
	if err != nil {
		return err
	}

	info, err := hostInfo(ctx, client, o.Config.AWX.InventoryID, args[0])
	if err != nil {
		return err
	}
	return printStructured(o.out, info, o.Output)
}

// hostInfo fails only when the host cannot be found; missing facts or
// groups are reported empty.
func hostInfo(ctx context.Context, client *awx.Client, inventoryID int, name string) (*HostInfo, error) {
	host, err := client.FindHost(ctx, inventoryID, name)
	if err != nil {
		return nil, fmt.Errorf("looking up host %s: %w", name, err)
	}
	if host == nil {
		return nil, fmt.Errorf("host %s not found in inventory %d", name, inventoryID)
	}

	logger := zap.S().Named("host_info")
	info := &HostInfo{Host: host, Variables: map[string]any{}, Facts: map[string]any{}, Groups: []string{}}

	if vars, err := client.HostVariables(ctx, host.ID); err != nil {
		logger.Warnf("could not read variables of %s: %s", name, err)
	} else if vars != nil {
		info.Variables = vars
	}
	if facts, err := client.HostFacts(ctx, host.ID); err != nil {
		logger.Warnf("could not read facts of %s: %s", name, err)
	} else if facts != nil {
		info.Facts = facts
	}
	if groups, err := client.HostGroups(ctx, host.ID); err != nil {
		logger.Warnf("could not read groups of %s: %s", name, err)
	} else {
		for _, g := range groups {
			info.Groups = append(info.Groups, g.Name)
		}
	}
	return info, nil
}
