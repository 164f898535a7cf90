// Package fixture generates fake datasets that satisfy a declared schema.
package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"db-transfer/internal/schema"
	"db-transfer/internal/transfer"
)

// Options configures a Source.
type Options struct {
	// Count is the number of rows generated per table.
	Count int
	// Tables restricts generation. Empty means every declared table.
	Tables []string
	// Version stamped on the dataset. Defaults to the schema document's version.
	Version string
	// Seed makes the output reproducible. Zero picks a random seed.
	Seed   int64
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Source produces fake rows for every selected table, parents first.
// Sequence fields are numbered 1..N and foreign keys point at the ids
// generated for the parent table. It implements transfer.Source.
type Source struct {
	doc   *schema.Document
	opts  Options
	faker *gofakeit.Faker
	log   *slog.Logger
}

var _ transfer.Source = (*Source)(nil)

func New(doc *schema.Document, opts Options) *Source {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Version == "" {
		opts.Version = doc.Version
	}
	return &Source{doc: doc, opts: opts, faker: gofakeit.New(opts.Seed), log: opts.Logger}
}

// Tables returns the tables that will be generated, in generation order.
func (s *Source) Tables() ([]*schema.Table, error) {
	ordered := s.doc.Ordered()
	if len(s.opts.Tables) == 0 {
		return ordered, nil
	}
	want := make(map[string]bool, len(s.opts.Tables))
	for _, name := range s.opts.Tables {
		t := s.doc.Table(name)
		if t == nil {
			return nil, &transfer.UnknownTableError{Table: name}
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

// RowCount returns how many rows t will get. Narrow sequence columns cap it.
func (s *Source) RowCount(t *schema.Table) int {
	n := s.opts.Count
	if seq := t.SequenceField(); seq != nil {
		if max := maxForDigits(seq.Length); max > 0 && max < n {
			s.log.Warn("sequence column limits row count", "table", t.Name, "column", seq.Name, "rows", max)
			n = max
		}
	}
	return n
}

func (s *Source) Stream(ctx context.Context, sink transfer.Sink) error {
	tables, err := s.Tables()
	if err != nil {
		return err
	}
	h := transfer.Header{Version: s.opts.Version, Timestamp: s.opts.Now().UTC(), Description: "generated fixtures"}
	if err := sink.Begin(ctx, h); err != nil {
		return err
	}

	pool := make(map[string][]int64)
	for _, t := range tables {
		if err := sink.BeginTable(ctx, t.Name, t.Hash()); err != nil {
			return err
		}
		gen := newTableGen(s, t, pool)
		n := s.RowCount(t)
		for i := 1; i <= n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sink.Record(ctx, t.Name, gen.row(i)); err != nil {
				return err
			}
		}
		if err := sink.EndTable(ctx, t.Name); err != nil {
			return err
		}
		pool[t.Name] = gen.ids
	}
	return sink.End(ctx)
}

// tableGen generates the rows of one table.
type tableGen struct {
	src     *Source
	table   *schema.Table
	pool    map[string][]int64
	unique  map[string]bool
	refs    map[string]*schema.ForeignKey
	meaning map[string]string
	ids     []int64
}

func newTableGen(src *Source, t *schema.Table, pool map[string][]int64) *tableGen {
	g := &tableGen{
		src:     src,
		table:   t,
		pool:    pool,
		unique:  make(map[string]bool),
		refs:    make(map[string]*schema.ForeignKey),
		meaning: make(map[string]string),
	}
	for _, idx := range t.Indexes {
		if !idx.Unique && !idx.Primary {
			continue
		}
		for _, f := range idx.Fields {
			g.unique[strings.ToLower(f)] = true
		}
	}
	for _, fk := range t.ForeignKeys {
		g.refs[strings.ToLower(fk.Column)] = fk
	}
	for _, f := range t.Fields {
		g.meaning[f.Name] = analyzeMeaning(f.Name, f.Comment)
	}
	return g
}

func (g *tableGen) row(i int) transfer.Record {
	rec := make(transfer.Record, len(g.table.Fields))
	for _, f := range g.table.Fields {
		rec[f.Name] = g.value(f, i)
	}
	if seq := g.table.SequenceField(); seq != nil {
		g.ids = append(g.ids, int64(i))
	}
	return rec
}

func (g *tableGen) value(f *schema.Field, i int) any {
	if f.Sequence {
		return int64(i)
	}
	if fk, ok := g.refs[strings.ToLower(f.Name)]; ok {
		return g.reference(f, fk, i)
	}
	v := g.src.generate(f, g.meaning[f.Name])
	if g.unique[strings.ToLower(f.Name)] {
		return makeUnique(f, v, i)
	}
	return v
}

// reference picks a parent id. Rows are assigned parents in turn so that
// unique foreign keys stay unique while the parent has enough rows.
func (g *tableGen) reference(f *schema.Field, fk *schema.ForeignKey, i int) any {
	ids := g.pool[fk.RefTable]
	if fk.RefTable == g.table.Name {
		// Self reference: point at an earlier row, the first row is a root.
		ids = g.ids
	}
	if len(ids) > 0 {
		return ids[(i-1)%len(ids)]
	}
	if !f.NotNull {
		return nil
	}
	if f.Default != nil {
		if n, err := strconv.ParseInt(*f.Default, 10, 64); err == nil {
			return n
		}
		return *f.Default
	}
	return int64(1)
}

// generate builds a value from the field type, refined by its meaning.
func (s *Source) generate(f *schema.Field, meaning string) any {
	name := strings.ToLower(f.Name)
	tokens := strings.Fields(meaning + " " + strings.ReplaceAll(name, "_", " "))
	// Short words must match a whole token: "ip" is not in "description".
	has := func(words ...string) bool {
		for _, w := range words {
			if len(w) >= 4 && (strings.Contains(meaning, w) || strings.Contains(name, w)) {
				return true
			}
			for _, tok := range tokens {
				if tok == w {
					return true
				}
			}
		}
		return false
	}
	fk := s.faker

	switch f.Type {
	case schema.TypeChar, schema.TypeText:
		var v string
		switch {
		case has("yesno"):
			v = []string{"Y", "N"}[fk.Number(0, 1)]
		case has("email"):
			v = fk.Email()
		case has("phone"):
			v = fk.Phone()
		case has("first name"):
			v = fk.FirstName()
		case has("last name"):
			v = fk.LastName()
		case has("login"):
			v = fk.Username()
		case has("name"):
			v = fk.Name()
		case has("address", "street"):
			v = fk.Street()
		case has("city"):
			v = fk.City()
		case has("country"):
			v = fk.CountryAbr()
		case has("zipcode"):
			v = fk.Zip()
		case has("url"):
			v = fk.URL()
		case has("ip"):
			v = fk.IPv4Address()
		case has("password"):
			v = fk.Password(true, true, true, false, false, 12)
		case has("language"):
			v = fk.LanguageAbbreviation()
		case has("title", "subject"):
			v = fk.Sentence(3)
		case has("description", "content", "message", "text", "summary"):
			v = fk.Paragraph(1, 2, 8, " ")
		case f.Type == schema.TypeChar && f.Length > 0 && f.Length < 20:
			v = fk.Word()
		default:
			v = fk.Sentence(5)
		}
		return truncate(v, f.Length)

	case schema.TypeInt:
		switch {
		case has("yesno", "flag"):
			return int64(fk.Number(0, 1))
		case has("time", "date", "created", "modified"):
			now := s.opts.Now()
			return fk.DateRange(now.AddDate(-1, 0, 0), now).Unix()
		case has("year"):
			return int64(2000 + fk.Number(0, 25))
		}
		max := 50000
		if m := maxForDigits(f.Length); m > 0 && m < max {
			max = m
		}
		return int64(fk.Number(1, max))

	case schema.TypeNumber:
		max := 99.99
		if f.Length > f.Decimals {
			if limit := math.Pow10(f.Length-f.Decimals) - 1; limit < max {
				max = limit
			}
		}
		scale := math.Pow10(f.Decimals)
		return math.Trunc(fk.Price(0, max)*scale) / scale

	case schema.TypeFloat:
		return fk.Float64Range(0, 1000)

	case schema.TypeBinary:
		return []byte(fk.LetterN(16))

	case schema.TypeDatetime:
		now := s.opts.Now()
		return fk.DateRange(now.AddDate(-1, 0, 0), now).UTC().Truncate(time.Second)
	}
	return nil
}

// makeUnique stamps the row number into a value that must not repeat.
func makeUnique(f *schema.Field, v any, i int) any {
	switch val := v.(type) {
	case string:
		suffix := fmt.Sprintf("-%d", i)
		if f.Length > 0 {
			keep := f.Length - len(suffix)
			switch {
			case keep < 0:
				return strconv.Itoa(i)
			case keep == 0:
				return suffix
			}
			val = truncate(val, keep)
		}
		return val + suffix
	case int64:
		return int64(i)
	case float64:
		return float64(i)
	}
	return v
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

// maxForDigits is the largest value an integer column of the given
// declared length holds, or 0 when the length does not constrain it.
func maxForDigits(length int) int {
	if length <= 0 || length >= 10 {
		return 0
	}
	limit := 1
	for i := 0; i < length; i++ {
		limit *= 10
	}
	return limit - 1
}
