package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-transfer/internal/dataset"
	"db-transfer/internal/transfer"
)

var (
	importFile    string
	importDryRun  bool
	importNoCheck bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the active database's content with a dataset file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doc, db, err := openActive(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("failed to open dataset: %w", err)
		}
		defer f.Close()

		if importDryRun {
			slog.Info("[SIMULATION] Dry-Run Mode Active: the import will be rolled back.")
		}

		start := time.Now()
		bar := startProgress("Importing", len(doc.Tables))
		im := transfer.NewImporter(db, doc, transfer.Options{
			Version:     systemVersion(),
			CheckSchema: viper.GetBool("settings.check_schema") && !importNoCheck,
			DryRun:      importDryRun,
			Logger:      slog.Default(),
			OnTable:     func(transfer.TableResult) { bar.Incr() },
		})
		err = im.Import(ctx, dataset.NewReader(bufio.NewReader(f)))
		uiprogress.Stop()
		if err != nil {
			return err
		}

		printReport("Import Report", im.Results(), time.Since(start))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Dataset file to import")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Run the whole import and roll it back")
	importCmd.Flags().BoolVar(&importNoCheck, "no-check", false, "Skip comparing the live database with the schema")
	importCmd.MarkFlagRequired("file")
}
