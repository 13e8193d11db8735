package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var expandCmd = &cobra.Command{
	Use:   "expand <group-path>",
	Short: "Expand a group's immediate members to identity records",
	Long: `Expand the immediate members of a group and resolve each one. The group
path may be a WinNT path (WinNT://DOMAIN/Admins), an LDAP path, or a
distinguished name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		session, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		records, err := session.expander.ExpandGroupMembers(ctx, args[0])
		if err != nil {
			return fmt.Errorf("expanding %q: %w", args[0], err)
		}

		if err := printRecords(records); err != nil {
			return err
		}

		stats := session.cache.Stats()
		fmt.Fprintf(cmd.ErrOrStderr(), "%d members, cache hits %d misses %d\n",
			len(records), stats.Hits, stats.Misses)
		return nil
	},
}
