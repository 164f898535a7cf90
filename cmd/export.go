package cmd

import (
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
	exportFile        string
	exportDescription string
	exportTables      []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the active database to a dataset file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doc, db, err := openActive(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		ex := transfer.NewExporter(db, doc, transfer.ExportOptions{
			Version:     systemVersion(),
			Description: exportDescription,
			CheckSchema: viper.GetBool("settings.check_schema"),
			Tables:      exportTables,
			Logger:      slog.Default(),
		})

		f, err := os.Create(exportFile)
		if err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}

		start := time.Now()
		total := len(doc.Tables)
		if len(exportTables) > 0 {
			total = len(exportTables)
		}
		sink := &progressSink{Sink: dataset.NewWriter(f), bar: startProgress("Exporting", total)}
		err = ex.Stream(ctx, sink)
		uiprogress.Stop()
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(exportFile)
			return err
		}

		printReport("Export Report", sink.results, time.Since(start))
		fmt.Printf("Written to %s\n", exportFile)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "Dataset file to write")
	exportCmd.Flags().StringVar(&exportDescription, "description", "", "Description stored in the dataset header")
	exportCmd.Flags().StringSliceVarP(&exportTables, "tables", "t", []string{}, "Specific tables to export (comma-separated)")
	exportCmd.MarkFlagRequired("file")
}
