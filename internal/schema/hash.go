package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash returns the structural digest of the table. Fields and indexes are
// sorted by lower-cased name so declaration order does not matter; the
// column order inside an index is kept. Table name, comments and foreign
// keys are not part of the digest.
func (t *Table) Hash() string {
	sum := sha256.Sum256([]byte(t.canonical()))
	return hex.EncodeToString(sum[:])
}

func (t *Table) canonical() string {
	fields := append([]*Field(nil), t.Fields...)
	sort.Slice(fields, func(i, j int) bool {
		return strings.ToLower(fields[i].Name) < strings.ToLower(fields[j].Name)
	})
	indexes := append([]*Index(nil), t.Indexes...)
	sort.Slice(indexes, func(i, j int) bool {
		return strings.ToLower(indexes[i].Name) < strings.ToLower(indexes[j].Name)
	})

	var b strings.Builder
	for _, f := range fields {
		def := "\x00"
		if f.Default != nil {
			def = "=" + *f.Default
		}
		fmt.Fprintf(&b, "field:%s|%s|%d|%d|%t|%t|%s\n",
			strings.ToLower(f.Name), f.Type, f.Length, f.Decimals, f.NotNull, f.Sequence, def)
	}
	for _, idx := range indexes {
		cols := make([]string, len(idx.Fields))
		for i, c := range idx.Fields {
			cols[i] = strings.ToLower(c)
		}
		fmt.Fprintf(&b, "index:%s|%t|%t|%s\n",
			strings.ToLower(idx.Name), idx.Unique, idx.Primary, strings.Join(cols, ","))
	}
	return b.String()
}
