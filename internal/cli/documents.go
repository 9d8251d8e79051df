package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/importer"
)

func showCommand(rt *runtime) *cobra.Command {
	var product string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a product's live form configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := rt.app.Service.Load(cmd.Context(), product)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📄 %s at version %d\n", product, loaded.Version)
			for _, s := range loaded.Document.Sections {
				fmt.Fprintf(out, "  [%s] %s\n", s.ID, s.SectionTitle)
				for _, f := range s.Fields {
					fmt.Fprintf(out, "    - %s (%s) %s%s\n", f.ID, f.FieldType, f.Label, requirementNote(f))
				}
			}
			if len(loaded.Document.ValidationFields) > 0 {
				fmt.Fprintln(out, "  [validation only]")
				for _, f := range loaded.Document.ValidationFields {
					fmt.Fprintf(out, "    - %s (%s) %s%s\n", f.ID, f.FieldType, f.Label, requirementNote(f))
				}
			}
			for _, c := range loaded.Document.RequiredDocuments.Categories {
				fmt.Fprintf(out, "  📎 %s: %d documents\n", c.Name, len(c.Documents))
			}
			return nil
		},
	}
	productFlag(cmd, &product)
	return cmd
}

func requirementNote(f formschema.Field) string {
	switch {
	case f.StageGated() && len(f.RequiredAtStage) > 0:
		stages := make([]string, len(f.RequiredAtStage))
		for i, s := range f.RequiredAtStage {
			stages[i] = string(s)
		}
		return " (required at " + strings.Join(stages, ", ") + ")"
	case f.StageGated():
		return ""
	case f.Required:
		return " (required)"
	}
	return ""
}

func importCommand(rt *runtime) *cobra.Command {
	var product, file, format, author, notes string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace a product's form configuration with a JSON, YAML or CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			f := importer.DetectFormat(file, data)
			if format != "" {
				if f, err = importer.ParseFormat(format); err != nil {
					return err
				}
			}
			res, err := rt.app.Service.Import(cmd.Context(), product, f, data, author, notes)
			printIssues(cmd.OutOrStdout(), res.Report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %s as version %d\n", product, res.Entry.VersionNumber)
			return nil
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().StringVar(&file, "file", "-", "File to import, - for stdin")
	cmd.Flags().StringVar(&format, "format", "", "json, yaml or csv (default: detect)")
	authorFlags(cmd, &author, &notes)
	return cmd
}

func exportCommand(rt *runtime) *cobra.Command {
	var product, file, by string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a product's form configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := rt.app.Service.Export(cmd.Context(), product, by)
			if err != nil {
				return err
			}
			if file == "" || file == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Exported %s to %s\n", product, file)
			return nil
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().StringVar(&file, "out", "-", "Output file, - for stdout")
	authorFlags(cmd, &by, nil)
	return cmd
}

func validateCommand() *cobra.Command {
	var file, format string
	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Check a form configuration file without saving it",
		Annotations: offline,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			f := importer.DetectFormat(file, data)
			if format != "" {
				if f, err = importer.ParseFormat(format); err != nil {
					return err
				}
			}
			_, report, err := importer.Document(f, data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printIssues(out, report)
			if err := report.Err(); err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Valid (%d warnings)\n", len(report.Warnings()))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "File to check, - for stdin")
	cmd.Flags().StringVar(&format, "format", "", "json, yaml or csv (default: detect)")
	return cmd
}

func dedupeCommand(rt *runtime) *cobra.Command {
	var product, author string
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Remove section fields that are also validation fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			drep, saved, err := rt.app.Service.Dedupe(cmd.Context(), product, author)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if saved == nil {
				fmt.Fprintln(out, "Nothing to remove.")
				return nil
			}
			fmt.Fprintf(out, "Removed fields: %s\n", strings.Join(drep.RemovedFields, ", "))
			if len(drep.DroppedSections) > 0 {
				fmt.Fprintf(out, "Dropped empty sections: %s\n", strings.Join(drep.DroppedSections, ", "))
			}
			fmt.Fprintf(out, "✅ Saved as version %d\n", saved.Entry.VersionNumber)
			return nil
		},
	}
	productFlag(cmd, &product)
	authorFlags(cmd, &author, nil)
	return cmd
}
