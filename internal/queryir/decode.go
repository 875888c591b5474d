package queryir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ormsql/internal/ir"
)

// Document kinds accepted by DecodeQuery.
const (
	DocSelect   = "select"
	DocRelated  = "related"
	DocInsert   = "insert"
	DocUpdate   = "update"
	DocDelete   = "delete"
	DocRelation = "relation"
)

// document is the YAML/JSON file form of every query kind.
// Fields irrelevant to a kind are rejected by toQuery.
type document struct {
	Kind   string `yaml:"kind"`
	Entity string `yaml:"entity"`

	Select          selectList `yaml:"select"`
	Where           Filter     `yaml:"where"`
	Joins           joinList   `yaml:"joins"`
	LeftJoins       joinList   `yaml:"leftJoins"`
	GroupBy         []string   `yaml:"groupBy"`
	Having          Filter     `yaml:"having"`
	OrderBy         orderList  `yaml:"orderBy"`
	Order           string     `yaml:"order"`
	Limit           *int       `yaml:"limit"`
	Offset          *int       `yaml:"offset"`
	Distinct        bool       `yaml:"distinct"`
	WithDeleted     bool       `yaml:"withDeleted"`
	SkipTextColumns bool       `yaml:"skipTextColumns"`
	Aggregate       *Aggregate `yaml:"aggregate"`

	Values    Values    `yaml:"values"`
	ID        string    `yaml:"id"`
	Hard      bool      `yaml:"hard"`
	Relation  string    `yaml:"relation"`
	ForeignID string    `yaml:"foreignId"`
	Parent    string    `yaml:"parentType"`
	Action    string    `yaml:"action"`
	Query     *document `yaml:"query"`
}

// DecodeQuery parses one query document (YAML or JSON).
//
// Filters keep their key order. Unknown top-level fields are rejected.
// Example:
//
//	kind: select
//	entity: Post
//	where:
//	  name*: "test%"
//	  OR: [{id: "1"}, {id: "2"}]
//	orderBy: [[2, DESC], "LIST:post.name:Test,Hello"]
func DecodeQuery(data []byte) (Query, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty query document")
		}
		return nil, fmt.Errorf("decode query: %w", err)
	}
	return doc.toQuery()
}

// DecodeQueryNode converts an already-parsed YAML node into a Query.
// Used by scenario files that embed queries.
func DecodeQueryNode(n *yaml.Node) (Query, error) {
	var doc document
	if err := n.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	return doc.toQuery()
}

func (d *document) toQuery() (Query, error) {
	kind := d.Kind
	if kind == "" {
		kind = DocSelect
	}

	switch kind {
	case DocSelect:
		sel := d.toSelect()
		return &sel, nil
	case DocRelated:
		r := &SelectRelated{
			EntityType: d.Entity,
			ID:         d.ID,
			Relation:   d.Relation,
			ForeignID:  d.ForeignID,
			ParentType: d.Parent,
		}
		if d.Query != nil {
			sel := d.Query.toSelect()
			r.Query = &sel
		}
		return r, nil
	case DocInsert:
		return &Insert{EntityType: d.Entity, Values: d.Values}, nil
	case DocUpdate:
		return &Update{EntityType: d.Entity, Values: d.Values, Where: d.idFilter(), WithDeleted: d.WithDeleted}, nil
	case DocDelete:
		return &Delete{EntityType: d.Entity, Where: d.idFilter(), Hard: d.Hard, WithDeleted: d.WithDeleted}, nil
	case DocRelation:
		c := &RelationChange{
			Action:     RelationAction(d.Action),
			EntityType: d.Entity,
			ID:         d.ID,
			Relation:   d.Relation,
			ForeignID:  d.ForeignID,
			ParentType: d.Parent,
		}
		if d.Query != nil {
			sel := d.Query.toSelect()
			c.Query = &sel
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown query kind %q", d.Kind)
	}
}

// idFilter prepends an id equality to Where when the document names an id.
func (d *document) idFilter() Filter {
	if d.ID == "" {
		return d.Where
	}
	out := Filter{W("id", d.ID)}
	return append(out, d.Where...)
}

func (d *document) toSelect() Select {
	return Select{
		EntityType:      d.Entity,
		Select:          []SelectItem(d.Select),
		Where:           d.Where,
		Joins:           []Join(d.Joins),
		LeftJoins:       []Join(d.LeftJoins),
		GroupBy:         d.GroupBy,
		Having:          d.Having,
		OrderBy:         []OrderItem(d.OrderBy),
		Order:           d.Order,
		Limit:           d.Limit,
		Offset:          d.Offset,
		Distinct:        d.Distinct,
		WithDeleted:     d.WithDeleted,
		SkipTextColumns: d.SkipTextColumns,
		Aggregate:       d.Aggregate,
	}
}

// UnmarshalYAML decodes a filter from a mapping (ordered entries) or a
// sequence (bare expressions and single-entry mappings).
func (f *Filter) UnmarshalYAML(n *yaml.Node) error {
	out, err := decodeFilter(n)
	if err != nil {
		return err
	}
	*f = out
	return nil
}

func decodeFilter(n *yaml.Node) (Filter, error) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.MappingNode:
		out := make(Filter, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			val, err := decodeEntryValue(key, n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %q: %w", n.Content[i].Line, key, err)
			}
			out = append(out, Entry{Key: key, Value: val})
		}
		return out, nil
	case yaml.SequenceNode:
		out := make(Filter, 0, len(n.Content))
		for _, item := range n.Content {
			item = resolveAlias(item)
			switch item.Kind {
			case yaml.ScalarNode:
				out = append(out, Bare(item.Value))
			case yaml.MappingNode:
				sub, err := decodeFilter(item)
				if err != nil {
					return nil, err
				}
				if len(sub) == 1 {
					out = append(out, sub[0])
				} else {
					out = append(out, And(sub))
				}
			default:
				return nil, fmt.Errorf("line %d: filter list items must be expressions or mappings", item.Line)
			}
		}
		return out, nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("line %d: filter must be a mapping or a list", n.Line)
}

func decodeEntryValue(key string, n *yaml.Node) (any, error) {
	n = resolveAlias(n)

	if IsGroupKey(key) {
		switch n.Kind {
		case yaml.MappingNode:
			return decodeFilter(n)
		case yaml.SequenceNode:
			groups := make([]Filter, 0, len(n.Content))
			for _, item := range n.Content {
				g, err := decodeFilter(item)
				if err != nil {
					return nil, err
				}
				groups = append(groups, g)
			}
			return groups, nil
		}
		// Scalars are kept so the compiler can report the malformed group.
		return decodeLiteral(n)
	}

	if ParseKey(key).Subquery && n.Kind == yaml.MappingNode {
		var d document
		if err := n.Decode(&d); err != nil {
			return nil, err
		}
		sel := d.toSelect()
		return &sel, nil
	}

	if n.Tag == "!expr" {
		return n.Value, nil
	}
	return decodeLiteral(n)
}

// decodeLiteral converts a YAML node into an IRValue using its resolved tag.
func decodeLiteral(n *yaml.Node) (ir.IRValue, error) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return ir.IRNull{}, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return ir.IRBool(b), nil
		case "!!int":
			var i int64
			if err := n.Decode(&i); err != nil {
				return nil, err
			}
			return ir.IRInt(i), nil
		case "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return nil, err
			}
			return ir.FromGo(f)
		default:
			return ir.IRString(n.Value), nil
		}
	case yaml.SequenceNode:
		arr := make(ir.IRArray, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := decodeLiteral(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MappingNode:
		obj := make(ir.IRObject, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := decodeLiteral(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj[n.Content[i].Value] = v
		}
		return obj, nil
	}
	return nil, fmt.Errorf("line %d: unsupported value", n.Line)
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// UnmarshalYAML decodes assignments from a mapping, keeping order.
// A value tagged !expr is an expression: `count: !expr "ADD:(count,1)"`.
func (v *Values) UnmarshalYAML(n *yaml.Node) error {
	n = resolveAlias(n)
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: values must be a mapping", n.Line)
	}
	out := make(Values, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		attr := n.Content[i].Value
		val := resolveAlias(n.Content[i+1])
		if val.Tag == "!expr" {
			out = append(out, SetExpr(attr, val.Value))
			continue
		}
		lit, err := decodeLiteral(val)
		if err != nil {
			return fmt.Errorf("%q: %w", attr, err)
		}
		out = append(out, Set(attr, lit))
	}
	*v = out
	return nil
}

// selectList decodes "expr" or [expr, alias] items.
type selectList []SelectItem

func (s *selectList) UnmarshalYAML(n *yaml.Node) error {
	n = resolveAlias(n)
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: select must be a list", n.Line)
	}
	out := make(selectList, 0, len(n.Content))
	for _, item := range n.Content {
		item = resolveAlias(item)
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, SelectItem{Expr: item.Value})
		case yaml.SequenceNode:
			var pair []string
			if err := item.Decode(&pair); err != nil {
				return err
			}
			if len(pair) == 0 || len(pair) > 2 {
				return fmt.Errorf("line %d: select item must be [expr] or [expr, alias]", item.Line)
			}
			si := SelectItem{Expr: pair[0]}
			if len(pair) == 2 {
				si.Alias = pair[1]
			}
			out = append(out, si)
		default:
			return fmt.Errorf("line %d: invalid select item", item.Line)
		}
	}
	*s = out
	return nil
}

// joinList decodes "relation", [target, alias, conditions] or mapping items.
type joinList []Join

type joinDoc struct {
	Target     string `yaml:"target"`
	Alias      string `yaml:"alias"`
	Conditions Filter `yaml:"conditions"`
	OnlyMiddle bool   `yaml:"onlyMiddle"`
	Table      bool   `yaml:"table"`
	ParentType string `yaml:"parentType"`
}

func (j *joinList) UnmarshalYAML(n *yaml.Node) error {
	n = resolveAlias(n)
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: joins must be a list", n.Line)
	}
	out := make(joinList, 0, len(n.Content))
	for _, item := range n.Content {
		item = resolveAlias(item)
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, Join{Target: item.Value})
		case yaml.SequenceNode:
			if len(item.Content) == 0 || len(item.Content) > 3 {
				return fmt.Errorf("line %d: join must be [target, alias, conditions]", item.Line)
			}
			join := Join{Target: item.Content[0].Value}
			if len(item.Content) > 1 {
				join.Alias = item.Content[1].Value
			}
			if len(item.Content) > 2 {
				conds, err := decodeFilter(item.Content[2])
				if err != nil {
					return err
				}
				join.Conditions = conds
			}
			out = append(out, join)
		case yaml.MappingNode:
			var jd joinDoc
			if err := item.Decode(&jd); err != nil {
				return err
			}
			out = append(out, Join(jd))
		default:
			return fmt.Errorf("line %d: invalid join", item.Line)
		}
	}
	*j = out
	return nil
}

// orderList decodes a single item or a list of items; an item is an
// expression, a 1-based position, or [expr|position, direction].
type orderList []OrderItem

func (o *orderList) UnmarshalYAML(n *yaml.Node) error {
	n = resolveAlias(n)
	if n.Kind == yaml.ScalarNode {
		item, err := decodeOrderScalar(n)
		if err != nil {
			return err
		}
		*o = orderList{item}
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: orderBy must be an item or a list", n.Line)
	}
	out := make(orderList, 0, len(n.Content))
	for _, item := range n.Content {
		item = resolveAlias(item)
		switch item.Kind {
		case yaml.ScalarNode:
			oi, err := decodeOrderScalar(item)
			if err != nil {
				return err
			}
			out = append(out, oi)
		case yaml.SequenceNode:
			if len(item.Content) == 0 || len(item.Content) > 2 {
				return fmt.Errorf("line %d: order item must be [expr, direction]", item.Line)
			}
			oi, err := decodeOrderScalar(item.Content[0])
			if err != nil {
				return err
			}
			if len(item.Content) == 2 {
				oi.Direction = strings.ToUpper(item.Content[1].Value)
			}
			out = append(out, oi)
		default:
			return fmt.Errorf("line %d: invalid order item", item.Line)
		}
	}
	*o = out
	return nil
}

func decodeOrderScalar(n *yaml.Node) (OrderItem, error) {
	if n.ShortTag() == "!!int" {
		var pos int
		if err := n.Decode(&pos); err != nil {
			return OrderItem{}, err
		}
		return OrderItem{Position: pos}, nil
	}
	return OrderItem{Expr: n.Value}, nil
}
