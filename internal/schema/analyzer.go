package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"db-transfer/internal/dialect"
)

// Queryer is satisfied by *sql.DB, *sql.Tx and their sqlx wrappers.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ---------------------------------------------------------------------
// 1. Live Schema Analysis
// ---------------------------------------------------------------------

// Analyze reads the live structure of every base table in schemaName.
// Column types are reduced to the dialect's type family so the result can
// be compared with a declared Document.
func Analyze(ctx context.Context, db Queryer, d dialect.Dialect, schemaName string) ([]*Table, error) {
	// [Interface-First]: Delegate schema resolution to the dialect
	target := d.GetSchemaName(schemaName)

	// Normalized keys for case-insensitive matching (Oracle upper-cases names)
	tableMap := make(map[string]*Table)
	var tables []*Table

	// --- Step 1: Fetch Tables ---
	rows, err := db.QueryContext(ctx, d.GetTablesQuery(target), target)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tables")
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan table name")
		}
		t := &Table{Name: name, Dependencies: []string{}}
		tableMap[strings.ToUpper(name)] = t
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating tables")
	}

	// --- Step 2: Fetch Columns ---
	colRows, err := db.QueryContext(ctx, d.GetColumnsQuery(target), target)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query columns")
	}
	defer colRows.Close()

	for colRows.Next() {
		var tName, cName, dType, cLen, cScale, isNull, extra sql.NullString

		if err := colRows.Scan(&tName, &cName, &dType, &cLen, &cScale, &isNull, &extra); err != nil {
			return nil, errors.Wrapf(err, "failed to scan column (table: %s)", tName.String)
		}
		if !tName.Valid || !cName.Valid {
			continue
		}

		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok {
			continue
		}

		extraLower := strings.ToLower(extra.String)
		t.Fields = append(t.Fields, &Field{
			Name:     cName.String,
			Type:     FieldType(d.TypeFamily(dType.String)),
			Length:   parseNumeric(cLen),
			Decimals: parseNumeric(cScale),
			NotNull:  isNull.String != "YES" && isNull.String != "Y",
			Sequence: strings.Contains(extraLower, "auto_increment") ||
				strings.Contains(extraLower, "identity") ||
				strings.Contains(extraLower, "nextval"),
		})
	}
	if err := colRows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating columns")
	}

	// --- Step 3: Fetch Indexes ---
	idxRows, err := db.QueryContext(ctx, d.GetIndexesQuery(target), target)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query indexes")
	}
	defer idxRows.Close()

	indexMap := make(map[string]*Index)
	for idxRows.Next() {
		var tName, iName, isUnique, isPrimary, cName, pos sql.NullString
		if err := idxRows.Scan(&tName, &iName, &isUnique, &isPrimary, &cName, &pos); err != nil {
			return nil, errors.Wrap(err, "failed to scan index")
		}

		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok || !iName.Valid || !cName.Valid {
			continue
		}

		key := strings.ToUpper(tName.String) + "." + strings.ToUpper(iName.String)
		idx, ok := indexMap[key]
		if !ok {
			idx = &Index{
				Name:    iName.String,
				Unique:  truthy(isUnique.String),
				Primary: truthy(isPrimary.String),
			}
			indexMap[key] = idx
			t.Indexes = append(t.Indexes, idx)
		}
		// Rows arrive ordered by column position.
		idx.Fields = append(idx.Fields, cName.String)
	}
	if err := idxRows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating indexes")
	}

	// --- Step 4: Fetch Foreign Keys ---
	fkRows, err := db.QueryContext(ctx, d.GetForeignKeysQuery(target), target)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query foreign keys")
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var tName, cConst, cName, rTable, rCol sql.NullString
		if err := fkRows.Scan(&tName, &cConst, &cName, &rTable, &rCol); err != nil {
			return nil, errors.Wrap(err, "failed to scan foreign key")
		}

		if tName.Valid && rTable.Valid && !strings.EqualFold(tName.String, rTable.String) {
			t, ok := tableMap[strings.ToUpper(tName.String)]
			ref, exists := tableMap[strings.ToUpper(rTable.String)]
			// Skip references to tables outside the analyzed schema
			if ok && exists {
				if !contains(t.Dependencies, ref.Name) {
					t.Dependencies = append(t.Dependencies, ref.Name)
				}
				t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
					Name:      cConst.String,
					Column:    cName.String,
					RefTable:  ref.Name,
					RefColumn: rCol.String,
				})
			}
		}
	}
	if err := fkRows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating foreign keys")
	}

	return SortTablesByFKCount(tables), nil
}

// parseNumeric handles drivers that report sizes as decimals ("10.0").
func parseNumeric(s sql.NullString) int {
	if !s.Valid || s.String == "" {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(s.String, "%d", &n); err == nil {
		return n
	}
	var f float64
	if _, err := fmt.Sscanf(s.String, "%f", &f); err == nil {
		return int(f)
	}
	return 0
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes":
		return true
	}
	return false
}

// ---------------------------------------------------------------------
// 2. Sorting Algorithm (Topological / Greedy)
// ---------------------------------------------------------------------

// SortTablesByFKCount sorts tables by dependency order.
// It handles circular dependencies by using a scoring system.
func SortTablesByFKCount(tables []*Table) []*Table {
	var sorted []*Table
	processed := make(map[string]bool)

	// Keep looping until all tables are processed
	for len(sorted) < len(tables) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}

			allDepsProcessed := true
			for _, depName := range t.Dependencies {
				if !processed[depName] {
					allDepsProcessed = false
					break
				}
			}

			if allDepsProcessed {
				sorted = append(sorted, t)
				processed[t.Name] = true
				added = true
			}
		}

		if added {
			continue
		}

		// Pass 2: No table added, so there is a cycle. Break it using a heuristic score.
		bestTable := breakCycle(tables, processed)
		if bestTable == nil {
			break
		}
		sorted = append(sorted, bestTable)
		processed[bestTable.Name] = true
	}

	return sorted
}

// breakCycle picks the unprocessed table with the fewest unmet dependencies,
// preferring tables that sit on a two-way reference.
func breakCycle(tables []*Table, processed map[string]bool) *Table {
	var bestTable *Table
	bestScore := -999999

	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	for _, t := range tables {
		if processed[t.Name] {
			continue
		}

		// Penalty: number of unprocessed dependencies
		score := 0
		isCircular := false
		for _, depName := range t.Dependencies {
			if processed[depName] {
				continue
			}
			score -= 100
			if dep, ok := byName[depName]; ok && contains(dep.Dependencies, t.Name) {
				isCircular = true
			}
		}
		if isCircular {
			score += 500 // Priority boost
		}

		// Tie-breaker: Name (Deterministic)
		if score > bestScore || (score == bestScore && (bestTable == nil || t.Name > bestTable.Name)) {
			bestScore = score
			bestTable = t
		}
	}
	return bestTable
}
