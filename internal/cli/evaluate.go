package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/resolver"
)

// valueFlags are shared by the commands that evaluate filled-in values.
type valueFlags struct {
	file  string
	pairs []string
}

func (v *valueFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.file, "values", "", "JSON object of values keyed by field id or label, - for stdin")
	cmd.Flags().StringArrayVar(&v.pairs, "set", nil, "Single value as key=value (repeatable)")
}

func (v *valueFlags) load(cmd *cobra.Command) (map[string]any, error) {
	return loadValues(cmd.InOrStdin(), v.file, v.pairs)
}

func resolveCommand(rt *runtime) *cobra.Command {
	var product, stage string
	var vals valueFlags
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which fields are visible and required at a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := vals.load(cmd)
			if err != nil {
				return err
			}
			st := formschema.ParseStage(stage)
			if !st.Known() {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  unknown stage %q: no stage-gated field is required\n", stage)
			}
			res, err := rt.app.Service.Resolve(cmd.Context(), product, st, resolver.Values(values))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Stage: %s\n", res.Stage)
			fmt.Fprintf(out, "Visible:  %s\n", strings.Join(res.VisibleIDs(), ", "))
			fmt.Fprintf(out, "Required: %s\n", strings.Join(res.RequiredIDs(), ", "))
			for _, id := range res.Order() {
				if next, ok := res.NextRequired[id]; ok {
					fmt.Fprintf(out, "  %s becomes required at %s\n", id, next)
				}
			}
			gaps := res.Missing(resolver.Values(values))
			if len(gaps) == 0 {
				fmt.Fprintln(out, "✅ Nothing missing")
				return nil
			}
			for _, g := range gaps {
				if g.Group != "" {
					fmt.Fprintf(out, "❌ group %s: one of %s\n", g.Group, strings.Join(g.Members, ", "))
					continue
				}
				fmt.Fprintf(out, "❌ %s\n", g.FieldID)
			}
			return nil
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().StringVar(&stage, "stage", string(formschema.StageDraft), "Lifecycle stage")
	vals.register(cmd)
	return cmd
}

func extractCommand(rt *runtime) *cobra.Command {
	var product string
	var explain bool
	var vals valueFlags
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Build the rule context sent to the risk service",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := vals.load(cmd)
			if err != nil {
				return err
			}
			rc, assignments, err := rt.app.Service.RuleContext(cmd.Context(), product, values)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if explain {
				for _, a := range assignments {
					fmt.Fprintf(out, "%s = %v (%s from %q)\n", a.Key, a.Value, a.Source, a.Label)
				}
			}
			return printJSON(out, rc)
		},
	}
	productFlag(cmd, &product)
	cmd.Flags().BoolVar(&explain, "explain", false, "Show where each key came from")
	vals.register(cmd)
	return cmd
}

func assessCommand(rt *runtime) *cobra.Command {
	var product string
	var vals valueFlags
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Score the rule context with the configured risk scorer",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := vals.load(cmd)
			if err != nil {
				return err
			}
			a, err := rt.app.Service.Assess(cmd.Context(), product, values)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
	productFlag(cmd, &product)
	vals.register(cmd)
	return cmd
}
