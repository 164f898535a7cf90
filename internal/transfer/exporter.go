package transfer

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"db-transfer/internal/schema"
)

// ExportOptions configures an Exporter.
type ExportOptions struct {
	// Version stamped on the dataset. Defaults to the schema document's version.
	Version     string
	Description string
	// CheckSchema validates the source database before anything is emitted.
	CheckSchema bool
	// Tables restricts the export. Empty means every declared table.
	Tables []string
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Exporter reads every declared table of a database and emits it as a
// dataset. It implements Source.
type Exporter struct {
	db        RowReader
	doc       *schema.Document
	opts      ExportOptions
	validator *Validator
	log       *slog.Logger
}

func NewExporter(db RowReader, doc *schema.Document, opts ExportOptions) *Exporter {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = doc.Version
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{db: db, doc: doc, opts: opts, validator: NewValidator(log), log: log}
}

// Stream emits tables in dependency order, parents first.
func (e *Exporter) Stream(ctx context.Context, sink Sink) error {
	if e.opts.CheckSchema {
		if err := e.validator.ValidateDatabase(ctx, e.db, e.doc); err != nil {
			return err
		}
	}
	tables, err := e.tables()
	if err != nil {
		return err
	}

	h := Header{Version: e.opts.Version, Timestamp: e.opts.Now().UTC(), Description: e.opts.Description}
	if err := sink.Begin(ctx, h); err != nil {
		return err
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.BeginTable(ctx, t.Name, t.Hash()); err != nil {
			return err
		}
		rows := 0
		err := e.db.ReadTable(ctx, t, func(rec Record) error {
			rows++
			return sink.Record(ctx, t.Name, rec)
		})
		if err != nil {
			return errors.Wrapf(err, "export table %s", t.Name)
		}
		if err := sink.EndTable(ctx, t.Name); err != nil {
			return err
		}
		e.log.Debug("table exported", "table", t.Name, "rows", rows)
	}
	return sink.End(ctx)
}

func (e *Exporter) tables() ([]*schema.Table, error) {
	ordered := e.doc.Ordered()
	if len(e.opts.Tables) == 0 {
		return ordered, nil
	}
	want := make(map[string]bool, len(e.opts.Tables))
	for _, name := range e.opts.Tables {
		t := e.doc.Table(name)
		if t == nil {
			return nil, &UnknownTableError{Table: name}
		}
		want[t.Name] = true
	}
	var out []*schema.Table
	for _, t := range ordered {
		if want[t.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}

// Move copies every table of the exporter's database into the importer's
// target in one import session.
func Move(ctx context.Context, from *Exporter, to *Importer) error {
	return to.Import(ctx, from)
}
