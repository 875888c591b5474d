// Package sqlcheck parses compiled MySQL statements with the TiDB parser,
// catching output the server would reject before it reaches one.
package sqlcheck

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver"
)

// ErrParse is wrapped by every error Check returns for unparseable SQL.
var ErrParse = errors.New("sql parse error")

// Statement kinds.
const (
	KindSelect = "select"
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
)

// Result describes one parsed statement.
type Result struct {
	Kind   string   `json:"kind"`
	Tables []string `json:"tables"` // every table referenced, sorted, deduplicated
}

// Check parses sql as a single MySQL DML statement.
func Check(sql string) (*Result, error) {
	p := parser.New()
	stmts, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("%w: expected one statement, got %d", ErrParse, len(stmts))
	}

	res := &Result{}
	switch stmts[0].(type) {
	case *ast.SelectStmt, *ast.SetOprStmt:
		res.Kind = KindSelect
	case *ast.InsertStmt:
		res.Kind = KindInsert
	case *ast.UpdateStmt:
		res.Kind = KindUpdate
	case *ast.DeleteStmt:
		res.Kind = KindDelete
	default:
		return nil, fmt.Errorf("%w: unsupported statement %T", ErrParse, stmts[0])
	}

	tc := &tableCollector{seen: make(map[string]bool)}
	stmts[0].Accept(tc)
	sort.Strings(tc.tables)
	res.Tables = tc.tables
	if res.Tables == nil {
		res.Tables = []string{}
	}
	return res, nil
}

// tableCollector gathers table names while walking a statement.
type tableCollector struct {
	tables []string
	seen   map[string]bool
}

func (c *tableCollector) Enter(n ast.Node) (ast.Node, bool) {
	if t, ok := n.(*ast.TableName); ok {
		name := t.Name.O
		if !c.seen[name] {
			c.seen[name] = true
			c.tables = append(c.tables, name)
		}
	}
	return n, false
}

func (c *tableCollector) Leave(n ast.Node) (ast.Node, bool) {
	return n, true
}
