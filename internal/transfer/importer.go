package transfer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"db-transfer/internal/schema"
)

// Options configures an Importer.
type Options struct {
	// Version is the version of the receiving system. Defaults to the
	// schema document's version.
	Version string
	// CheckSchema compares the live database with the schema before the
	// session starts.
	CheckSchema bool
	// DryRun runs the whole session and rolls back instead of committing.
	DryRun bool
	Logger *slog.Logger
	// OnTable is called after each table is finished.
	OnTable func(TableResult)
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateOpen
	stateClosed
)

// Importer drives one import session at a time against a Target:
//
//	BeginImport -> (BeginTable -> ImportRow* -> EndTable)* -> EndImport
//
// Every failure rolls the session back before it is returned.
type Importer struct {
	target    Target
	doc       *schema.Document
	opts      Options
	validator *Validator
	log       *slog.Logger

	state    sessionState
	id       uuid.UUID
	header   Header
	tx       TargetTx
	writer   *Writer
	current  *schema.Table
	imported map[string]bool
	results  []TableResult
	started  time.Time
}

func NewImporter(target Target, doc *schema.Document, opts Options) *Importer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = doc.Version
	}
	return &Importer{
		target:    target,
		doc:       doc,
		opts:      opts,
		validator: NewValidator(log),
		log:       log,
	}
}

// SessionID identifies the current or last session.
func (im *Importer) SessionID() uuid.UUID { return im.id }

// Results lists the tables finished in the current or last session.
func (im *Importer) Results() []TableResult {
	return append([]TableResult(nil), im.results...)
}

// BeginImport checks the data version, prepares the target and opens the
// session transaction. An empty target gets the declared tables installed.
func (im *Importer) BeginImport(ctx context.Context, h Header) error {
	if im.state == stateOpen {
		return im.fail(ErrSessionOpen)
	}
	im.state = stateIdle
	im.id = uuid.New()
	im.header = h
	im.results = nil
	im.current = nil
	im.imported = make(map[string]bool)
	im.log = im.baseLogger().With("session", im.id.String())

	if err := CheckVersion(h.Version, im.opts.Version); err != nil {
		return err
	}

	names, err := im.target.TableNames(ctx)
	if err != nil {
		return errors.Wrap(err, "list target tables")
	}
	if len(names) == 0 {
		im.log.Info("target is empty, installing schema", "tables", len(im.doc.Tables))
		if err := im.target.Install(ctx, im.doc); err != nil {
			return errors.Wrap(err, "install schema")
		}
	} else if im.opts.CheckSchema {
		if err := im.validator.ValidateDatabase(ctx, im.target, im.doc); err != nil {
			return err
		}
	}

	tx, err := im.target.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	im.tx = tx
	im.writer = NewWriter(tx)
	im.state = stateOpen
	im.started = time.Now()
	im.log.Info("import started", "version", h.Version, "timestamp", h.Timestamp, "dry_run", im.opts.DryRun)
	return nil
}

// BeginTable checks that name is declared, that the incoming structure
// hash matches and that the table exists, then deletes all of its rows.
func (im *Importer) BeginTable(ctx context.Context, name, hash string) error {
	if im.state != stateOpen {
		return ErrSessionNotOpen
	}
	if im.current != nil {
		return im.fail(errors.Wrapf(ErrTableOpen, "begin %s while %s is open", name, im.current.Name))
	}
	t := im.doc.Table(name)
	if t == nil {
		return im.fail(&UnknownTableError{Table: name})
	}
	if im.imported[t.Name] {
		return im.fail(errors.Wrap(ErrTableImported, t.Name))
	}
	if !im.validator.ValidateTableHash(t, hash) {
		return im.fail(&SchemaMismatchError{Table: t.Name, ExpectedHash: t.Hash(), ActualHash: hash})
	}
	exists, err := im.tx.TableExists(ctx, t.Name)
	if err != nil {
		return im.fail(errors.Wrapf(err, "check table %s", t.Name))
	}
	if !exists {
		return im.fail(&TableMissingError{Table: t.Name})
	}
	if err := im.writer.ClearTable(ctx, t); err != nil {
		return im.fail(err)
	}
	im.current = t
	im.log.Debug("table started", "table", t.Name)
	return nil
}

// ImportRow inserts one record into the open table.
func (im *Importer) ImportRow(ctx context.Context, name string, rec Record) error {
	t, err := im.openTable(name)
	if err != nil {
		return err
	}
	if err := im.writer.InsertRecord(ctx, t, rec); err != nil {
		return im.fail(err)
	}
	return nil
}

// EndTable resets the table's sequence and closes it.
func (im *Importer) EndTable(ctx context.Context, name string) error {
	t, err := im.openTable(name)
	if err != nil {
		return err
	}
	if err := im.writer.ResetSequence(ctx, t); err != nil {
		return im.fail(err)
	}
	res := TableResult{Name: t.Name, Rows: im.writer.Rows(t.Name)}
	im.results = append(im.results, res)
	im.imported[t.Name] = true
	im.current = nil
	im.log.Debug("table finished", "table", t.Name, "rows", res.Rows)
	if im.opts.OnTable != nil {
		im.opts.OnTable(res)
	}
	return nil
}

// EndImport commits the session, or rolls it back on a dry run.
func (im *Importer) EndImport(ctx context.Context) error {
	if im.state != stateOpen {
		return ErrSessionNotOpen
	}
	if im.current != nil {
		return im.fail(errors.Wrapf(ErrTableOpen, "end import while %s is open", im.current.Name))
	}
	tx := im.tx
	im.close()
	if im.opts.DryRun {
		if err := tx.Rollback(); err != nil {
			return errors.Wrap(err, "rollback dry run")
		}
		im.log.Info("dry run finished, changes rolled back", "tables", len(im.results), "elapsed", time.Since(im.started))
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "commit import")
	}
	im.log.Info("import committed", "tables", len(im.results), "elapsed", time.Since(im.started))
	return nil
}

// Abort rolls back an open session. It does nothing otherwise.
func (im *Importer) Abort() {
	if im.state != stateOpen {
		return
	}
	tx := im.tx
	im.close()
	if err := tx.Rollback(); err != nil {
		im.log.Error("rollback failed", "error", err)
		return
	}
	im.log.Warn("import rolled back")
}

// Import streams src into the target in a single session.
func (im *Importer) Import(ctx context.Context, src Source) error {
	if err := src.Stream(ctx, im.Sink()); err != nil {
		im.Abort()
		return err
	}
	if im.state == stateOpen {
		im.Abort()
		return ErrIncomplete
	}
	return nil
}

// Sink adapts the importer to the streaming protocol.
func (im *Importer) Sink() Sink {
	return importSink{im: im}
}

func (im *Importer) openTable(name string) (*schema.Table, error) {
	if im.state != stateOpen {
		return nil, ErrSessionNotOpen
	}
	if im.current == nil || !strings.EqualFold(im.current.Name, name) {
		return nil, im.fail(errors.Wrap(ErrTableNotOpen, name))
	}
	return im.current, nil
}

func (im *Importer) fail(err error) error {
	im.Abort()
	return err
}

func (im *Importer) close() {
	im.state = stateClosed
	im.tx = nil
	im.writer = nil
	im.current = nil
}

func (im *Importer) baseLogger() *slog.Logger {
	if im.opts.Logger != nil {
		return im.opts.Logger
	}
	return slog.Default()
}

type importSink struct {
	im *Importer
}

func (s importSink) Begin(ctx context.Context, h Header) error {
	return s.im.BeginImport(ctx, h)
}

func (s importSink) BeginTable(ctx context.Context, table, hash string) error {
	return s.im.BeginTable(ctx, table, hash)
}

func (s importSink) Record(ctx context.Context, table string, rec Record) error {
	return s.im.ImportRow(ctx, table, rec)
}

func (s importSink) EndTable(ctx context.Context, table string) error {
	return s.im.EndTable(ctx, table)
}

func (s importSink) End(ctx context.Context) error {
	return s.im.EndImport(ctx)
}
