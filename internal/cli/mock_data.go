package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"onboarding-forms/internal/migration"
	"onboarding-forms/internal/store"
)

func migrateMockCommand(rt *runtime) *cobra.Command {
	var (
		from   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "migrate-mock",
		Short: "Load mock JSON documents into the data store",
		Long: `Reads <productId>.json files from a mock data directory and saves each one
as version 1 of its product. Products that already have history are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			src, err := store.LoadMemoryStore(from)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintln(out, "🔍 Dry run; nothing will be written.")
			}
			res, err := migration.NewMockToStoreMigrator(src, rt.app.Service, dryRun, rt.app.Log).Run(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range res.Migrated {
				fmt.Fprintf(out, "✅ %s\n", id)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "⚠️  %s\n", w)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(out, "❌ %s\n", e)
			}
			fmt.Fprintf(out, "Migrated %d, skipped %d, failed %d\n", len(res.Migrated), len(res.Skipped), len(res.Errors))
			if !res.Success {
				return fmt.Errorf("migration finished with %d errors", len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "data/forms", "Mock data directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be migrated without saving")
	return cmd
}

func exportMockCommand(rt *runtime) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export-mock",
		Short: "Write every live document to a mock data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exporting form configurations to %s...\n", dir)
			n, err := migration.ExportMockData(cmd.Context(), rt.app.Service, dir)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(out, "No form configurations found.")
				return nil
			}
			fmt.Fprintf(out, "✅ Exported %d form configurations\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "data/forms", "Output directory")
	return cmd
}
