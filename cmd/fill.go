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
	"db-transfer/internal/fixture"
	"db-transfer/internal/transfer"
)

var (
	fillCount  int
	fillTables []string
	fillOut    string
	fillDryRun bool
	fillSeed   int64
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill the database with random data, or write it to a dataset file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doc, err := loadSchema()
		if err != nil {
			return err
		}

		count := viper.GetInt("settings.default_count")
		if cmd.Flags().Changed("count") {
			count = fillCount
		}
		if count <= 0 {
			return fmt.Errorf("--count must be positive, got %d", count)
		}

		src := fixture.New(doc, fixture.Options{
			Count:   count,
			Tables:  fillTables,
			Version: systemVersion(),
			Seed:    fillSeed,
			Logger:  slog.Default(),
		})
		tables, err := src.Tables()
		if err != nil {
			return err
		}

		start := time.Now()
		if fillOut != "" {
			f, err := os.Create(fillOut)
			if err != nil {
				return fmt.Errorf("failed to create dataset: %w", err)
			}
			w := bufio.NewWriter(f)
			bar := startProgress("Generating", len(tables))
			sink := &progressSink{Sink: dataset.NewWriter(w), bar: bar}
			err = src.Stream(ctx, sink)
			uiprogress.Stop()
			if err == nil {
				err = w.Flush()
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(fillOut)
				return err
			}
			printReport("Generation Report", sink.results, time.Since(start))
			fmt.Printf("💾 Dataset written to %s\n", fillOut)
			return nil
		}

		cfg, err := GetActiveDBConfig()
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if fillDryRun {
			slog.Info("[SIMULATION] Dry-Run Mode Active: generated rows will be rolled back.")
		}

		bar := startProgress("Filling", len(tables))
		im := transfer.NewImporter(db, doc, transfer.Options{
			Version:     systemVersion(),
			CheckSchema: viper.GetBool("settings.check_schema"),
			DryRun:      fillDryRun,
			Logger:      slog.Default(),
			OnTable:     func(transfer.TableResult) { bar.Incr() },
		})
		err = im.Import(ctx, src)
		uiprogress.Stop()
		if err != nil {
			return err
		}

		printReport("Fill Report", im.Results(), time.Since(start))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(fillCmd)

	fillCmd.Flags().IntVarP(&fillCount, "count", "n", 0, "Rows per table (default settings.default_count)")
	fillCmd.Flags().StringSliceVarP(&fillTables, "tables", "t", []string{}, "Specific tables to fill (comma-separated)")
	fillCmd.Flags().StringVarP(&fillOut, "out", "o", "", "Write a dataset file instead of filling the database")
	fillCmd.Flags().BoolVar(&fillDryRun, "dry-run", false, "Generate and insert the rows, then roll back")
	fillCmd.Flags().Int64Var(&fillSeed, "seed", 0, "Seed for reproducible data (0 picks a random seed)")
}
