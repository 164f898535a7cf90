package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-transfer/internal/transfer"
)

var (
	transferFrom   string
	transferTo     string
	transferDryRun bool
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Copy one configured database into another in a single transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if transferFrom == transferTo {
			return fmt.Errorf("--from and --to name the same database")
		}
		doc, err := loadSchema()
		if err != nil {
			return err
		}
		fromCfg, err := GetDBConfig(transferFrom)
		if err != nil {
			return err
		}
		toCfg, err := GetDBConfig(transferTo)
		if err != nil {
			return err
		}

		from, err := openStore(ctx, fromCfg)
		if err != nil {
			return err
		}
		defer from.Close()
		to, err := openStore(ctx, toCfg)
		if err != nil {
			return err
		}
		defer to.Close()

		check := viper.GetBool("settings.check_schema")
		start := time.Now()
		bar := startProgress("Transferring", len(doc.Tables))
		ex := transfer.NewExporter(from, doc, transfer.ExportOptions{
			Version:     systemVersion(),
			Description: fmt.Sprintf("transfer from %s", fromCfg.Name),
			CheckSchema: check,
			Logger:      slog.Default(),
		})
		im := transfer.NewImporter(to, doc, transfer.Options{
			Version:     systemVersion(),
			CheckSchema: check,
			DryRun:      transferDryRun,
			Logger:      slog.Default(),
			OnTable:     func(transfer.TableResult) { bar.Incr() },
		})
		err = transfer.Move(ctx, ex, im)
		uiprogress.Stop()
		if err != nil {
			return err
		}

		printReport(fmt.Sprintf("Transfer Report %s -> %s", fromCfg.Name, toCfg.Name), im.Results(), time.Since(start))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(transferCmd)

	transferCmd.Flags().StringVar(&transferFrom, "from", "", "Source database name from the config")
	transferCmd.Flags().StringVar(&transferTo, "to", "", "Target database name from the config")
	transferCmd.Flags().BoolVar(&transferDryRun, "dry-run", false, "Run the whole transfer and roll it back")
	transferCmd.MarkFlagRequired("from")
	transferCmd.MarkFlagRequired("to")
}
