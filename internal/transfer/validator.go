package transfer

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"db-transfer/internal/schema"
)

// Validator checks that a database, or an incoming table, matches the
// declared schema.
type Validator struct {
	log *slog.Logger
}

func NewValidator(log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{log: log}
}

// ValidateDatabase introspects db and compares it with every table of doc.
// Any difference is returned as a *SchemaMismatchError.
func (v *Validator) ValidateDatabase(ctx context.Context, db Introspector, doc *schema.Document) error {
	live, err := db.Introspect(ctx)
	if err != nil {
		return errors.Wrap(err, "introspect database")
	}
	diffs := schema.CompareDocument(doc, live)
	if len(diffs) == 0 {
		v.log.Debug("database matches schema", "tables", len(doc.Tables))
		return nil
	}
	for _, d := range diffs {
		v.log.Warn("schema difference", "table", d.Table, "object", d.Object, "kind", string(d.Kind))
	}
	return &SchemaMismatchError{Differences: diffs}
}

// ValidateTableHash reports whether hash is the structural hash of t.
func (v *Validator) ValidateTableHash(t *schema.Table, hash string) bool {
	return t != nil && t.Hash() == hash
}
