package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gosuri/uiprogress"

	"db-transfer/internal/transfer"
)

// startProgress shows a bar advancing once per finished table.
func startProgress(label string, tables int) *uiprogress.Bar {
	uiprogress.Start()
	bar := uiprogress.AddBar(tables).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("%s (%d/%d): ", label, b.Current(), tables)
	})
	return bar
}

// progressSink counts rows per table on their way to the wrapped sink.
type progressSink struct {
	transfer.Sink
	bar     *uiprogress.Bar
	results []transfer.TableResult
}

func (p *progressSink) BeginTable(ctx context.Context, table, hash string) error {
	if err := p.Sink.BeginTable(ctx, table, hash); err != nil {
		return err
	}
	p.results = append(p.results, transfer.TableResult{Name: table})
	return nil
}

func (p *progressSink) Record(ctx context.Context, table string, rec transfer.Record) error {
	if err := p.Sink.Record(ctx, table, rec); err != nil {
		return err
	}
	p.results[len(p.results)-1].Rows++
	return nil
}

func (p *progressSink) EndTable(ctx context.Context, table string) error {
	if err := p.Sink.EndTable(ctx, table); err != nil {
		return err
	}
	p.bar.Incr()
	return nil
}

func printReport(title string, results []transfer.TableResult, elapsed time.Duration) {
	fmt.Printf("\n📊 %s (Dependency Order):\n", title)
	total := 0
	for i, r := range results {
		fmt.Printf("[✓] [%02d/%02d] %-30s : %d rows\n", i+1, len(results), r.Name, r.Rows)
		total += r.Rows
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total Rows: %d\n", total)
	fmt.Printf("Time Elapsed: %s\n", elapsed.Round(time.Millisecond))
}
