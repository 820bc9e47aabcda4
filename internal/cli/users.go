package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users in the social graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		be, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer be.close()

		users, err := be.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users. Run `claimgate seed` to load the demo graph.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tROLES\tREPUTATION\tTRUSTED")
		for _, u := range users {
			roles := make([]string, len(u.Roles))
			for i, r := range u.Roles {
				roles[i] = string(r)
			}
			trusted := ""
			if u.Trusted {
				trusted = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", u.ID, u.Name, strings.Join(roles, ","), u.Reputation, trusted)
		}
		return tw.Flush()
	},
}
