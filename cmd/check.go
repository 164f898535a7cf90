package cmd

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"db-transfer/internal/transfer"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the active database with the schema file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doc, db, err := openActive(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		v := transfer.NewValidator(slog.Default())
		err = v.ValidateDatabase(ctx, db, doc)
		var mismatch *transfer.SchemaMismatchError
		if errors.As(err, &mismatch) {
			fmt.Println("\n🔍 Schema Differences:")
			for _, d := range mismatch.Differences {
				fmt.Printf("[✗] %s\n", d)
			}
			return fmt.Errorf("%d differences between %s and the database", len(mismatch.Differences), doc.Path)
		}
		if err != nil {
			return err
		}

		fmt.Println("\n📊 Table Status (Dependency Order):")
		for i, t := range doc.Ordered() {
			n, err := db.CountRows(ctx, t.Name)
			if err != nil {
				return err
			}
			fmt.Printf("[✓] [%02d/%02d] %-30s : %d rows\n", i+1, len(doc.Tables), t.Name, n)
		}
		fmt.Println("--------------------------------------------------")
		fmt.Println("Database matches the schema.")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(checkCmd)
}
