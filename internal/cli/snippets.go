package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"onboarding-forms/internal/formservice"
	"onboarding-forms/internal/importer"
	"onboarding-forms/internal/patch"
)

func snippetCommand(rt *runtime) *cobra.Command {
	var product, file, format, kind, section, author string
	var all bool
	cmd := &cobra.Command{
		Use:   "snippet",
		Short: "Upsert a section, field, validation field or document category",
		Long: `Reads a fragment (JSON, YAML or a single-section CSV) and upserts it into
a product's form configuration. Items are matched by id: an existing item is
replaced in place, a new one is appended. With --all the snippet is applied to
every product that has a saved configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && product == "" {
				return fmt.Errorf("either --product or --all is required")
			}
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
			var k patch.Kind
			if kind != "" {
				if k, err = patch.ParseKind(kind); err != nil {
					return err
				}
			}
			snippet, err := importer.Snippet(f, data, k, patch.Target{SectionID: section})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if all {
				report, err := rt.app.Service.Broadcast(cmd.Context(), snippet, author)
				if err != nil {
					return err
				}
				for _, r := range report.Results {
					switch r.Status {
					case formservice.StatusApplied:
						fmt.Fprintf(out, "✅ %s: %s %s, version %d\n", r.ProductID, r.Outcome.Kind, r.Outcome.ID, r.Version)
					case formservice.StatusFailed:
						fmt.Fprintf(out, "❌ %s: %s\n", r.ProductID, r.Error)
					default:
						fmt.Fprintf(out, "⏭️  %s: skipped\n", r.ProductID)
					}
				}
				fmt.Fprintf(out, "Applied %d, failed %d, skipped %d\n", report.Applied, report.Failed, report.Skipped)
				if report.Failed > 0 {
					return fmt.Errorf("snippet failed for %d products", report.Failed)
				}
				return nil
			}

			res, err := rt.app.Service.ApplySnippet(cmd.Context(), product, snippet, author)
			if err != nil {
				return err
			}
			verb := "Added"
			if res.Outcome.Replaced {
				verb = "Replaced"
			}
			fmt.Fprintf(out, "✅ %s %s %q; saved as version %d\n", verb, res.Outcome.Kind, res.Outcome.ID, res.Entry.VersionNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "Product ID")
	cmd.Flags().BoolVar(&all, "all", false, "Apply to every product")
	cmd.MarkFlagsMutuallyExclusive("product", "all")
	cmd.Flags().StringVar(&file, "file", "-", "Snippet file, - for stdin")
	cmd.Flags().StringVar(&format, "format", "", "json, yaml or csv (default: detect)")
	cmd.Flags().StringVar(&kind, "kind", "", "section, field, validation_field or document_category (default: infer)")
	cmd.Flags().StringVar(&section, "section", "", "Target section for a field snippet")
	authorFlags(cmd, &author, nil)
	return cmd
}

func reorderCommand(rt *runtime) *cobra.Command {
	var product, collection, parent, author, fromRaw, toRaw string
	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Move an item within sections, fields, validation fields, categories or documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := patch.ParseCollectionKind(collection)
			if err != nil {
				return err
			}
			from, err := parseIndex(fromRaw, "--from")
			if err != nil {
				return err
			}
			to, err := parseIndex(toRaw, "--to")
			if err != nil {
				return err
			}
			c := patch.Collection{Kind: kind, ParentID: parent}
			res, err := rt.app.Service.Reorder(cmd.Context(), product, c, from, to, author)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Moved %s item %d to %d; saved as version %d\n", c, from, to, res.Entry.VersionNumber)
			return nil
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().StringVar(&collection, "collection", "sections", "sections, fields, validation_fields, categories or documents")
	cmd.Flags().StringVar(&parent, "parent", "", "Section id for fields, category id for documents")
	cmd.Flags().StringVar(&fromRaw, "from", "", "Current position (0-based)")
	cmd.Flags().StringVar(&toRaw, "to", "", "New position (0-based)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	authorFlags(cmd, &author, nil)
	return cmd
}

func promoteCommand(rt *runtime) *cobra.Command {
	var product, field, author string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Move a section field into the validation fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rt.app.Service.Promote(cmd.Context(), product, field, author)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Promoted %s; saved as version %d\n", field, res.Entry.VersionNumber)
			return nil
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().StringVar(&field, "field", "", "Field ID (required)")
	_ = cmd.MarkFlagRequired("field")
	authorFlags(cmd, &author, nil)
	return cmd
}

func editCommand(rt *runtime) *cobra.Command {
	var (
		product, opRaw, file, author string
		at                           int
		e                            patch.Edit
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply one structural edit (add/remove sections, fields, documents, mappings)",
		Long: `Applies one structural edit and saves the result as a new version.

Ops: add_section, remove_section, add_field, remove_field, promote,
remove_validation_field, add_category, remove_category, add_document,
remove_document, set_mapping, remove_mapping. The add ops read the new
element as JSON from --file ("-" for stdin).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := patch.ParseOp(opRaw)
			if err != nil {
				return err
			}
			e.Op = op
			if cmd.Flags().Changed("at") {
				e.At = &at
			}
			if file != "" {
				data, err := readInput(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				e.Fragment = data
			}
			res, err := rt.app.Service.Edit(cmd.Context(), product, e, author)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s; saved as version %d\n", e.Describe(), res.Entry.VersionNumber)
			return nil
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().StringVar(&opRaw, "op", "", "Edit operation (required)")
	_ = cmd.MarkFlagRequired("op")
	cmd.Flags().StringVar(&e.ParentID, "parent", "", "Section id for add_field, category id for document ops")
	cmd.Flags().StringVar(&e.ID, "id", "", "Id of the element to remove or promote")
	cmd.Flags().IntVar(&at, "at", -1, "Insert position for add ops (default append)")
	cmd.Flags().StringVar(&file, "file", "", "JSON fragment for add ops")
	cmd.Flags().StringVar(&e.Label, "label", "", "Field label for mapping ops")
	cmd.Flags().StringVar(&e.Key, "key", "", "Rule-context key for set_mapping")
	authorFlags(cmd, &author, nil)
	return cmd
}
