// Package dialect holds the per-backend syntax tables the SQL compiler is
// parameterized by.
//
// A Dialect supplies identifier quoting, literal escaping, LIMIT/OFFSET
// syntax, empty-IN substitutes, native function patterns (date bucketing,
// timezone conversion, full-text MATCH), value-list ordering and the
// junction upsert clause. Adding a backend means adding a table; the
// compiler does not change.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Name identifies a dialect.
type Name string

const (
	NameMySQL  Name = "mysql"
	NameSQLite Name = "sqlite"
)

// EscapeStyle selects how quotes inside string literals are escaped.
type EscapeStyle int

const (
	// EscapeBackslash escapes ' and \ (and control bytes) with a backslash, as MySQL does.
	EscapeBackslash EscapeStyle = iota
	// EscapeDouble doubles the single quote, as standard SQL does.
	EscapeDouble
)

// Dialect defines the syntax variations of one SQL target.
type Dialect struct {
	Name Name

	// Identifier quoting
	IdentQuoteChar byte

	// Literal escaping
	Escape EscapeStyle

	// Substitutes for IN () and NOT IN () with an empty list.
	EmptyIn    string
	EmptyNotIn string

	// Limit/Offset handling
	UseLimitComma  bool   // LIMIT offset, count (MySQL style); otherwise LIMIT count OFFSET offset
	UnboundedLimit string // row count used when only an offset is given

	// Functions maps primitive names to fmt patterns over already-compiled
	// argument fragments, always using explicit indexes (%[1]s).
	// A missing entry means the dialect cannot express the primitive.
	Functions map[string]string

	// MatchModes maps full-text function names to the AGAINST modifier.
	// Empty means the dialect has no MATCH ... AGAINST support.
	MatchModes map[string]string

	// ValueList renders an ordering key that is larger for values earlier
	// in the list it receives; the compiler passes the list reversed.
	ValueList func(expr string, values []string) string

	// Upsert is appended to junction-row inserts so re-relating a
	// soft-deleted pair revives it.
	Upsert string

	// InsertSelectParens wraps the SELECT of INSERT ... SELECT in parentheses.
	InsertSelectParens bool
}

// QuoteIdent quotes an identifier, doubling embedded quote characters.
func (d *Dialect) QuoteIdent(s string) string {
	q := string(d.IdentQuoteChar)
	return q + strings.ReplaceAll(s, q, q+q) + q
}

// QuoteLiteral quotes a string literal using the dialect's escaping convention.
func (d *Dialect) QuoteLiteral(s string) string {
	if d.Escape == EscapeDouble {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// UnquoteLiteral reverses QuoteLiteral.
func (d *Dialect) UnquoteLiteral(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", fmt.Errorf("not a quoted literal: %s", s)
	}
	body := s[1 : len(s)-1]

	if d.Escape == EscapeDouble {
		if strings.Count(body, "'")%2 != 0 {
			return "", fmt.Errorf("unbalanced quote in literal: %s", s)
		}
		return strings.ReplaceAll(body, "''", "'"), nil
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape in literal: %s", s)
		}
		switch body[i] {
		case '0':
			b.WriteByte(0)
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'Z':
			b.WriteByte(0x1a)
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String(), nil
}

// Limit renders the LIMIT clause, without a leading space.
// Returns "" when neither bound is set. The comma form always carries an
// offset, defaulting to 0.
func (d *Dialect) Limit(offset, limit *int) string {
	if offset == nil && limit == nil {
		return ""
	}

	count := d.UnboundedLimit
	if limit != nil {
		count = strconv.Itoa(*limit)
	}
	if d.UseLimitComma {
		off := 0
		if offset != nil {
			off = *offset
		}
		return fmt.Sprintf("LIMIT %d, %s", off, count)
	}
	if offset == nil {
		return "LIMIT " + count
	}
	return fmt.Sprintf("LIMIT %s OFFSET %d", count, *offset)
}

// Func renders a primitive function over compiled argument fragments.
// Returns false when the dialect has no pattern for name.
func (d *Dialect) Func(name string, args ...string) (string, bool) {
	pattern, ok := d.Functions[name]
	if !ok {
		return "", false
	}
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a
	}
	return fmt.Sprintf(pattern, vals...), true
}

// Match renders a full-text match over comma-joined columns.
// Returns false when the dialect or the mode is unsupported.
func (d *Dialect) Match(mode, columns, query string) (string, bool) {
	modifier, ok := d.MatchModes[mode]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("MATCH (%s) AGAINST (%s%s)", columns, query, modifier), true
}

// Registry holds the registered dialects.
var Registry = map[Name]*Dialect{
	NameMySQL:  MySQL,
	NameSQLite: SQLite,
}

// Get returns the dialect for name (case-insensitive), or nil if unknown.
func Get(name string) *Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb":
		return MySQL
	case "sqlite", "sqlite3":
		return SQLite
	}
	return nil
}

// Names returns the registered dialect names in a fixed order.
func Names() []string {
	return []string{string(NameMySQL), string(NameSQLite)}
}
