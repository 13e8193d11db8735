package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IMJLA/go-adsi/pkg/identity"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <reference>...",
	Short: "Resolve identity references to canonical records",
	Long: `Resolve one or more identity references. A reference may be a SID string
(S-1-5-21-...), a caption (DOMAIN\name), or a bare account name.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		session, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		server := identity.ServerContext{
			Server:      viper.GetString("server"),
			NetbiosName: viper.GetString("netbios"),
			DnsName:     viper.GetString("domain"),
			Flavor:      identity.FlavorLDAP,
		}
		if server.Server == "" {
			server.Server = viper.GetString("domain")
		}

		records := make([]*identity.Record, 0, len(args))
		for _, reference := range args {
			record, err := session.resolver.ResolveIdentity(ctx, reference, server)
			if err != nil {
				return fmt.Errorf("resolving %q: %w", reference, err)
			}
			records = append(records, record)
		}

		return printRecords(records)
	},
}

func init() {
	resolveCmd.Flags().String("server", "", "server the references are scoped to")
	resolveCmd.Flags().String("netbios", "", "NetBIOS name of the server's domain")
	cobra.CheckErr(viper.BindPFlags(resolveCmd.Flags()))
}

func printRecords(records []*identity.Record) error {
	if viper.GetString("output") == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REFERENCE\tSID\tSHORT NAME\tFQN\tRESOLVED")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
			record.OriginalReference,
			record.SidString,
			record.ShortName,
			record.FullyQualifiedName,
			record.Resolved(),
		)
	}
	return w.Flush()
}
