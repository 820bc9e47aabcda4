package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/claimgate/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed [fixture.yaml]",
	Short: "Load users, relationships and claims from a YAML fixture",
	Long: `Load a YAML fixture into the configured backend. Without an argument the
built-in demo graph is loaded. Seeding is idempotent: users and claims are
upserted by id and duplicate relationships are ignored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	fixture := seed.Demo()
	name := "demo"
	if len(args) == 1 {
		var err error
		fixture, err = seed.LoadFile(args[0])
		if err != nil {
			return err
		}
		name = args[0]
	}

	be, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer be.close()

	st, err := fixture.Apply(cmd.Context(), be.writer, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seed %s: %w", name, err)
	}
	fmt.Fprintf(os.Stderr, "seeded %s into %s: %d users, %d relationships, %d claims\n",
		name, be.where, st.Users, st.Edges, st.Claims)
	return nil
}
