package store

import (
	"sort"
	"strings"

	"github.com/roach88/ormsql/internal/compiler"
	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/schema"
)

// DDL returns the SQLite CREATE TABLE statements for reg.
//
// Entity tables come first, belongs-to targets before their owners, then
// junction tables in name order. Only storable plain attributes get a
// column: foreign and composite attributes are computed by the compiler.
func DDL(reg *schema.Registry) []string {
	var stmts []string
	for _, name := range compiler.DependencyOrder(reg.Specs()) {
		e, ok := reg.Entity(name)
		if !ok {
			continue
		}
		stmts = append(stmts, entityTable(e))
	}
	for _, j := range junctions(reg) {
		stmts = append(stmts, j.sql())
	}
	return stmts
}

func entityTable(e *schema.Entity) string {
	var cols []string
	for _, a := range e.Attributes {
		if !hasColumn(a) {
			continue
		}
		cols = append(cols, quote(a.Column)+" "+columnType(a))
	}
	return createTable(e.Table, cols)
}

// hasColumn reports whether an attribute is backed by its own column.
func hasColumn(a ir.AttributeSpec) bool {
	if a.NotStorable {
		return false
	}
	switch a.Type {
	case ir.TypeForeign, ir.TypePersonName:
		return false
	}
	return true
}

func columnType(a ir.AttributeSpec) string {
	if a.Name == "id" {
		return "TEXT PRIMARY KEY"
	}
	switch a.Type {
	case ir.TypeInt:
		return "INTEGER"
	case ir.TypeFloat:
		return "REAL"
	case ir.TypeBool:
		return "INTEGER NOT NULL DEFAULT 0"
	default:
		return "TEXT"
	}
}

// junction collects the columns of one junction table across every
// relation that uses it.
type junction struct {
	table string
	cols  []string // near, far, then condition columns
	seen  map[string]bool
}

func (j *junction) add(col string) {
	if j.seen[col] {
		return
	}
	j.seen[col] = true
	j.cols = append(j.cols, col)
}

func (j *junction) sql() string {
	defs := []string{quote("id") + " INTEGER PRIMARY KEY AUTOINCREMENT"}
	quoted := make([]string, len(j.cols))
	for i, c := range j.cols {
		quoted[i] = quote(c)
		defs = append(defs, quoted[i]+" TEXT")
	}
	defs = append(defs,
		quote("deleted")+" INTEGER NOT NULL DEFAULT 0",
		"UNIQUE ("+strings.Join(quoted, ", ")+")",
	)
	return createTable(j.table, defs)
}

func junctions(reg *schema.Registry) []*junction {
	byTable := make(map[string]*junction)
	for _, e := range reg.Entities() {
		for _, r := range e.Relations {
			if r.Kind != ir.RelationManyMany {
				continue
			}
			j, ok := byTable[r.JunctionTable]
			if !ok {
				j = &junction{table: r.JunctionTable, seen: make(map[string]bool)}
				byTable[r.JunctionTable] = j
			}
			j.add(schema.Column(r.NearKey()))
			j.add(schema.Column(r.FarKey()))

			keys := make([]string, 0, len(r.Conditions))
			for k := range r.Conditions {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				j.add(schema.Column(k))
			}
		}
	}

	out := make([]*junction, 0, len(byTable))
	for _, j := range byTable {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].table < out[b].table })
	return out
}

func createTable(table string, defs []string) string {
	return "CREATE TABLE IF NOT EXISTS " + quote(table) + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

func quote(ident string) string {
	return dialect.SQLite.QuoteIdent(ident)
}

// Script joins the DDL statements of reg into one executable script.
func Script(reg *schema.Registry) string {
	return strings.Join(DDL(reg), ";\n\n") + ";\n"
}
