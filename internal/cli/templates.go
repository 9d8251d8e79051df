package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func templatesCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List or load starter form configurations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the available templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			list := rt.app.Service.Templates()
			if len(list) == 0 {
				fmt.Fprintln(out, "No templates configured.")
				return nil
			}
			for _, t := range list {
				fmt.Fprintf(out, "%-24s %-10s %s\n", t.Name, t.Source, t.Description)
			}
			return nil
		},
	})

	var product, author string
	apply := &cobra.Command{
		Use:   "apply NAME",
		Short: "Replace a product's form configuration with a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rt.app.Service.ApplyTemplate(cmd.Context(), product, args[0], author)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Loaded template %s into %s as version %d\n", args[0], product, res.Entry.VersionNumber)
			return nil
		},
	}
	productFlag(apply, &product)
	authorFlags(apply, &author, nil)
	cmd.AddCommand(apply)
	return cmd
}
