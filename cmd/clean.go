package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"db-transfer/internal/schema"
	"db-transfer/internal/transfer"
)

var cleanTables []string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete all rows of the declared tables and reset their sequences",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doc, db, err := openActive(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		tables, err := selectTables(doc, cleanTables)
		if err != nil {
			return err
		}

		tx, err := db.Begin(ctx)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				tx.Rollback()
			}
		}()

		w := transfer.NewWriter(tx)
		total := len(tables)
		count := 0
		// Children first.
		for i := len(tables) - 1; i >= 0; i-- {
			t := tables[i]
			count++
			exists, err := tx.TableExists(ctx, t.Name)
			if err != nil {
				return err
			}
			if !exists {
				slog.Warn("table does not exist, skipping", "table", t.Name)
				continue
			}
			if err := w.ClearTable(ctx, t); err != nil {
				return err
			}
			if err := w.ResetSequence(ctx, t); err != nil {
				return err
			}
			if count%5 == 0 || count == total {
				slog.Info(fmt.Sprintf("Cleaned %d/%d tables...", count, total))
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit cleaning transaction: %w", err)
		}
		committed = true

		fmt.Println("🧹 Database Cleaned Successfully!")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", []string{}, "Specific tables to clean (comma-separated)")
}

// selectTables returns the named tables in dependency order, or every
// declared table when names is empty.
func selectTables(doc *schema.Document, names []string) ([]*schema.Table, error) {
	ordered := doc.Ordered()
	if len(names) == 0 {
		return ordered, nil
	}
	reqTables := make(map[string]bool)
	for _, n := range names {
		if doc.Table(n) == nil {
			return nil, &transfer.UnknownTableError{Table: n}
		}
		reqTables[strings.ToLower(n)] = true
	}
	var out []*schema.Table
	for _, t := range ordered {
		if reqTables[strings.ToLower(t.Name)] {
			out = append(out, t)
		}
	}
	return out, nil
}
