package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"onboarding-forms/internal/ledger"
)

func historyCommand(rt *runtime) *cobra.Command {
	var product string
	var check bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a product's saved versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := rt.app.Service.History(cmd.Context(), product)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n--- Version history for product: %s ---\n", product)
			fmt.Fprintf(out, "📚 Found %d versions.\n\n", len(history))
			for _, v := range history {
				fmt.Fprintf(out, "📄 Version %d | by %s | %s\n", v.VersionNumber, v.ChangedBy, v.CreatedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "🆔 Version ID: %s\n", v.VersionID)
				if v.ChangeNotes != "" {
					fmt.Fprintf(out, "📝 %s\n", v.ChangeNotes)
				}
				if v.Snapshot != nil {
					fmt.Fprintf(out, "   %d sections, %d validation fields, %d document categories\n",
						len(v.Snapshot.Sections), len(v.Snapshot.ValidationFields), len(v.Snapshot.RequiredDocuments.Categories))
				}
				fmt.Fprintln(out)
			}

			if check {
				anomalies := ledger.CheckIntegrity(history)
				if len(anomalies) == 0 {
					fmt.Fprintln(out, "✅ History is consistent.")
					return nil
				}
				for _, a := range anomalies {
					fmt.Fprintf(out, "❌ %s: %s\n", a.Kind, a.Detail)
				}
				return fmt.Errorf("history of %s has %d anomalies", product, len(anomalies))
			}
			return nil
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().BoolVar(&check, "check", false, "Also check version numbering")
	return cmd
}

func restoreCommand(rt *runtime) *cobra.Command {
	var product, author string
	var version int
	var save bool
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Print an old version, or save it as a new one with --save",
		RunE: func(cmd *cobra.Command, args []string) error {
			if version < 1 {
				return fmt.Errorf("--version must be at least 1")
			}
			doc, saved, err := rt.app.Service.Restore(cmd.Context(), product, version, save, author)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if saved == nil {
				return printJSON(out, doc)
			}
			fmt.Fprintf(out, "✅ Restored version %d of %s as version %d\n", version, product, saved.Entry.VersionNumber)
			return nil
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().IntVar(&version, "version", 0, "Version number to restore (required)")
	_ = cmd.MarkFlagRequired("version")
	cmd.Flags().BoolVar(&save, "save", false, "Commit the restored document as a new version")
	authorFlags(cmd, &author, nil)
	return cmd
}
