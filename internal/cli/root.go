package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"onboarding-forms/internal/datastore"
	"onboarding-forms/internal/formservice"
)

// App is what a command runs against.
type App struct {
	Store            datastore.DataStore
	Service          *formservice.Service
	Log              zerolog.Logger
	Mode             datastore.Type
	ConnectionString string
	Close            func()
}

// Builder creates the App. It runs only for commands that need the store.
type Builder func(ctx context.Context) (*App, error)

type runtime struct {
	build Builder
	app   *App
}

// offline marks commands that run without the data store.
var offline = map[string]string{"offline": "true"}

// NewRootCommand assembles the formctl command tree.
func NewRootCommand(build Builder) *cobra.Command {
	rt := &runtime{build: build}

	root := &cobra.Command{
		Use:           "formctl",
		Short:         "Manage service form configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["offline"] == "true" || rt.app != nil {
				return nil
			}
			app, err := rt.build(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize data store: %w", err)
			}
			rt.app = app
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.app != nil && rt.app.Close != nil {
				rt.app.Close()
			}
		},
	}

	root.AddCommand(
		initDBCommand(rt),
		showCommand(rt),
		importCommand(rt),
		exportCommand(rt),
		validateCommand(),
		dedupeCommand(rt),
		snippetCommand(rt),
		reorderCommand(rt),
		promoteCommand(rt),
		editCommand(rt),
		historyCommand(rt),
		restoreCommand(rt),
		resolveCommand(rt),
		extractCommand(rt),
		assessCommand(rt),
		templatesCommand(rt),
		migrateMockCommand(rt),
		exportMockCommand(rt),
	)
	return root
}

func initDBCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the form configuration schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if rt.app.Mode == datastore.MockStore {
				fmt.Fprintln(out, "Running in MOCK mode; nothing to initialize.")
				return nil
			}
			fmt.Fprintf(out, "Initializing database at %s\n", maskConnectionString(rt.app.ConnectionString))
			if err := rt.app.Store.InitDB(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, "Database initialized successfully.")
			return nil
		},
	}
}

// defaultAuthor is the OS user, so versions are attributed without a flag.
func defaultAuthor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func productFlag(cmd *cobra.Command, product *string) {
	cmd.Flags().StringVar(product, "product", "", "Product ID (required)")
	_ = cmd.MarkFlagRequired("product")
}

func authorFlags(cmd *cobra.Command, author, notes *string) {
	cmd.Flags().StringVar(author, "author", defaultAuthor(), "User recorded on the new version")
	if notes != nil {
		cmd.Flags().StringVar(notes, "notes", "", "Change notes for the new version")
	}
}
