package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cleanbites/backend/internal/analysis"
	"github.com/cleanbites/backend/internal/config"
	"github.com/cleanbites/backend/internal/database"
	"github.com/cleanbites/backend/internal/ml"
	"github.com/cleanbites/backend/internal/server"
	"github.com/cleanbites/backend/internal/version"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the cleanbites command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "cleanbites",
		Short: "CleanBites nutrition analysis backend",
		Long: `CleanBites stores user health profiles and food submissions, asks Gemini
for a nutritional analysis of a product and turns the answer into a
display-ready view model.

Configuration is read from a JSON file (--config, CLEANBITES_CONFIG,
config/config.json or config.json), then overridden by environment
variables, including those of a .env file in the working directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.GetConfigPath(), "path to configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newAnalyzeCmd(),
		newHistoryCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.NewLogger()

			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger.Info("Starting CleanBites",
				"version", version.String(),
				"port", cfg.Server.Port,
				"database", cfg.Database.Path,
				"ml", cfg.ML.Type)

			db, err := database.NewSQLiteDB(cfg.Database.Path, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			model, err := ml.NewModel(cfg.ML, logger)
			if err != nil {
				return fmt.Errorf("failed to create ML model: %w", err)
			}
			if err := model.Load(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load ML model: %w", err)
			}
			defer model.Close()

			return server.New(cfg, db, model, logger).Start(cmd.Context())
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var canonical bool

	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Classify a raw analysis payload and print the view model",
		Long: `Reads a raw analysis payload as returned by the model, from a file or
from stdin when the argument is "-" or missing, and prints the view model
as JSON. With --canonical the default-filled record is printed instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			fa, err := analysis.NormalizeJSON(data)
			if err != nil {
				return err
			}
			if canonical {
				return printJSON(cmd.OutOrStdout(), fa)
			}
			return printJSON(cmd.OutOrStdout(), analysis.Classify(fa))
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false, "print the normalized record instead of the view model")
	return cmd
}

func newHistoryCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "List the most recent analyses of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.NewTextLogger(cmd.ErrOrStderr())

			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			db, err := database.NewSQLiteDB(cfg.Database.Path, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			recs, err := db.GetRecentAnalyses(cmd.Context(), args[0], server.ClampHistoryLimit(limit))
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No analyses for %s\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tID\tPRODUCT\tPROCESSING\tRISK")
			for _, rec := range recs {
				vm, err := analysis.Analyze(rec.Payload)
				if err != nil {
					logger.Warn("Skipping unreadable analysis", "id", rec.ID, "error", err)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					rec.CreatedAt.Format("2006-01-02 15:04"), rec.ID, rec.ProductName,
					vm.Processing.Label, vm.Risk.Label)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", server.DefaultHistoryLimit,
		fmt.Sprintf("number of analyses to list (at most %d)", server.MaxHistoryLimit))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the CLI with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}
