package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
)

// Entity is one entity type with every metadata default filled in.
type Entity struct {
	Name       string
	Table      string
	Attributes []ir.AttributeSpec // declaration order, Column always set
	Relations  []Relation         // declaration order

	attrs map[string]int
	rels  map[string]int
}

// Attribute returns the named attribute.
func (e *Entity) Attribute(name string) (*ir.AttributeSpec, bool) {
	i, ok := e.attrs[name]
	if !ok {
		return nil, false
	}
	return &e.Attributes[i], true
}

// Relation returns the named relation.
func (e *Entity) Relation(name string) (*Relation, bool) {
	i, ok := e.rels[name]
	if !ok {
		return nil, false
	}
	return &e.Relations[i], true
}

// Relation is a relation with its defaults resolved.
//
// Key, ForeignKey, ForeignType and MidKeys hold attribute names; use
// Column to get the physical column.
type Relation struct {
	ir.RelationSpec

	// Owner is the entity type declaring the relation.
	Owner string

	// JunctionTable is the physical junction table of a manyMany relation.
	JunctionTable string
}

// NearKey returns the junction attribute pointing at the owner.
func (r *Relation) NearKey() string {
	if len(r.MidKeys) < 1 {
		return ""
	}
	return r.MidKeys[0]
}

// FarKey returns the junction attribute pointing at the related entity.
func (r *Relation) FarKey() string {
	if len(r.MidKeys) < 2 {
		return ""
	}
	return r.MidKeys[1]
}

// BindingKind classifies how an attribute reaches SQL.
type BindingKind int

const (
	// BindColumn is a physical column of the entity's own table.
	BindColumn BindingKind = iota
	// BindForeign is a field of the entity reached through a belongs-to relation.
	BindForeign
	// BindComposite is an expression assembled from sibling columns.
	BindComposite
	// BindNotStorable has no column; it never appears in SQL.
	BindNotStorable
)

func (k BindingKind) String() string {
	switch k {
	case BindColumn:
		return "column"
	case BindForeign:
		return "foreign"
	case BindComposite:
		return "composite"
	default:
		return "notStorable"
	}
}

// Binding is the resolution of an attribute name against an entity.
type Binding struct {
	Entity    string
	Attribute *ir.AttributeSpec
	Kind      BindingKind

	// Column is set for BindColumn.
	Column string

	// Relation and ForeignField are set for BindForeign.
	Relation     *Relation
	ForeignField string

	// Composite is set for BindComposite.
	Composite *ir.CompositeSpec
}

// Source supplies the registry one compilation runs against. A Registry
// is its own source; a Store hands out its current snapshot.
type Source interface {
	Snapshot() *Registry
}

// Registry is an immutable, resolved set of entity types.
//
// Thread-safety: a Registry is never mutated after NewRegistry returns,
// so it is safe for concurrent use.
type Registry struct {
	entities map[string]*Entity
	specs    []ir.EntitySpec
}

// NewRegistry resolves metadata defaults and checks cross references.
//
// Every problem found is reported, joined into one error.
func NewRegistry(specs []ir.EntitySpec) (*Registry, error) {
	r := &Registry{
		entities: make(map[string]*Entity, len(specs)),
		specs:    append([]ir.EntitySpec(nil), specs...),
	}

	var errs []error
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			errs = append(errs, errors.New("entity with empty name"))
			continue
		}
		if seen[spec.Name] {
			errs = append(errs, fmt.Errorf("entity %q declared twice", spec.Name))
			continue
		}
		seen[spec.Name] = true
		e, err := resolveEntity(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.entities[spec.Name] = e
	}

	for _, name := range r.names() {
		errs = append(errs, r.checkReferences(r.entities[name])...)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static metadata; it panics on error.
func MustRegistry(specs []ir.EntitySpec) *Registry {
	r, err := NewRegistry(specs)
	if err != nil {
		panic(err)
	}
	return r
}

// Snapshot returns r.
func (r *Registry) Snapshot() *Registry {
	return r
}

// Entity returns the named entity type.
func (r *Registry) Entity(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Entities returns every entity type sorted by name.
func (r *Registry) Entities() []*Entity {
	names := r.names()
	out := make([]*Entity, len(names))
	for i, n := range names {
		out[i] = r.entities[n]
	}
	return out
}

// Specs returns the metadata the registry was built from.
func (r *Registry) Specs() []ir.EntitySpec {
	return append([]ir.EntitySpec(nil), r.specs...)
}

// Hash returns the content hash of the metadata.
func (r *Registry) Hash() (string, error) {
	return ir.SchemaHash(r.specs)
}

// ResolveAttribute binds an attribute name of entityType.
func (r *Registry) ResolveAttribute(entityType, attribute string) (Binding, error) {
	e, ok := r.entities[entityType]
	if !ok {
		return Binding{}, queryir.Errorf(queryir.KindUnknownAttribute, attribute, "unknown entity type %q", entityType)
	}
	a, ok := e.Attribute(attribute)
	if !ok {
		return Binding{}, queryir.Errorf(queryir.KindUnknownAttribute, attribute, "entity %s has no attribute %q", entityType, attribute)
	}

	b := Binding{Entity: entityType, Attribute: a}
	switch {
	case a.Type == ir.TypeForeign:
		b.Kind = BindForeign
		b.Relation, _ = e.Relation(a.Relation)
		b.ForeignField = a.Field
	case a.Composite != nil:
		b.Kind = BindComposite
		b.Composite = a.Composite
	case a.NotStorable:
		b.Kind = BindNotStorable
	default:
		b.Kind = BindColumn
		b.Column = a.Column
	}
	return b, nil
}

// ResolveRelation returns the named relation of entityType.
func (r *Registry) ResolveRelation(entityType, relation string) (*Relation, error) {
	e, ok := r.entities[entityType]
	if !ok {
		return nil, queryir.Errorf(queryir.KindUnknownRelation, relation, "unknown entity type %q", entityType)
	}
	rel, ok := e.Relation(relation)
	if !ok {
		return nil, queryir.Errorf(queryir.KindUnknownRelation, relation, "entity %s has no relation %q", entityType, relation)
	}
	return rel, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func resolveEntity(spec ir.EntitySpec) (*Entity, error) {
	e := &Entity{
		Name:       spec.Name,
		Table:      spec.Table,
		Attributes: make([]ir.AttributeSpec, len(spec.Attributes)),
		Relations:  make([]Relation, len(spec.Relations)),
		attrs:      make(map[string]int, len(spec.Attributes)),
		rels:       make(map[string]int, len(spec.Relations)),
	}
	if e.Table == "" {
		e.Table = Table(spec.Name)
	}

	for i, a := range spec.Attributes {
		if _, dup := e.attrs[a.Name]; dup {
			return nil, fmt.Errorf("%s: attribute %q declared twice", spec.Name, a.Name)
		}
		if a.Column == "" {
			a.Column = Column(a.Name)
		}
		e.Attributes[i] = a
		e.attrs[a.Name] = i
	}

	for i, rs := range spec.Relations {
		if _, dup := e.rels[rs.Name]; dup {
			return nil, fmt.Errorf("%s: relation %q declared twice", spec.Name, rs.Name)
		}
		rel, err := resolveRelation(spec.Name, rs)
		if err != nil {
			return nil, err
		}
		e.Relations[i] = rel
		e.rels[rs.Name] = i
	}
	return e, nil
}

func resolveRelation(owner string, rs ir.RelationSpec) (Relation, error) {
	if !ir.ValidRelationKinds[rs.Kind] {
		return Relation{}, fmt.Errorf("%s.%s: unknown relation kind %q", owner, rs.Name, rs.Kind)
	}

	rel := Relation{RelationSpec: rs, Owner: owner}
	if rel.Entity == "" && rs.Kind != ir.RelationBelongsToParent {
		rel.Entity = EntityForRelation(rs.Name)
	}
	if rs.Conditions != nil {
		rel.Conditions = make(map[string]string, len(rs.Conditions))
		for k, v := range rs.Conditions {
			rel.Conditions[k] = v
		}
	}

	switch rs.Kind {
	case ir.RelationBelongsTo:
		setDefault(&rel.Key, rs.Name+"Id")
		setDefault(&rel.ForeignKey, "id")
	case ir.RelationBelongsToParent:
		setDefault(&rel.Key, rs.Name+"Id")
		setDefault(&rel.ForeignType, rs.Name+"Type")
	case ir.RelationHasMany:
		setDefault(&rel.Key, "id")
		setDefault(&rel.ForeignKey, KeyFor(owner))
	case ir.RelationHasChildren:
		setDefault(&rel.Key, "id")
		setDefault(&rel.ForeignKey, "parentId")
		setDefault(&rel.ForeignType, "parentType")
	case ir.RelationManyMany:
		setDefault(&rel.Key, "id")
		setDefault(&rel.ForeignKey, "id")
		setDefault(&rel.Junction, Junction(owner, rel.Entity))
		if len(rs.MidKeys) == 0 {
			rel.MidKeys = []string{KeyFor(owner), KeyFor(rel.Entity)}
		} else {
			rel.MidKeys = append([]string(nil), rs.MidKeys...)
		}
		if len(rel.MidKeys) != 2 {
			return Relation{}, fmt.Errorf("%s.%s: manyMany needs exactly two mid keys", owner, rs.Name)
		}
		if rel.MidKeys[0] == rel.MidKeys[1] {
			return Relation{}, fmt.Errorf("%s.%s: mid keys must differ, got %q twice", owner, rs.Name, rel.MidKeys[0])
		}
		rel.JunctionTable = Table(rel.Junction)
	}
	return rel, nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// checkReferences validates links that span entities: foreign attributes
// must go through a belongs-to relation, composites must name existing
// parts, and related entity types must be declared.
func (r *Registry) checkReferences(e *Entity) []error {
	var errs []error

	for _, rel := range e.Relations {
		if rel.Entity == "" {
			continue
		}
		if _, ok := r.entities[rel.Entity]; !ok {
			errs = append(errs, fmt.Errorf("%s.%s: unknown entity type %q", e.Name, rel.Name, rel.Entity))
		}
	}

	for _, a := range e.Attributes {
		switch {
		case a.Type == ir.TypeForeign:
			rel, ok := e.Relation(a.Relation)
			if !ok {
				errs = append(errs, fmt.Errorf("%s.%s: foreign attribute names unknown relation %q", e.Name, a.Name, a.Relation))
				continue
			}
			if rel.Kind != ir.RelationBelongsTo {
				errs = append(errs, fmt.Errorf("%s.%s: foreign attribute needs a belongsTo relation, %q is %s", e.Name, a.Name, rel.Name, rel.Kind))
				continue
			}
			if a.Field == "" {
				errs = append(errs, fmt.Errorf("%s.%s: foreign attribute needs a field", e.Name, a.Name))
				continue
			}
			if target, ok := r.entities[rel.Entity]; ok {
				if _, ok := target.Attribute(a.Field); !ok {
					errs = append(errs, fmt.Errorf("%s.%s: %s has no attribute %q", e.Name, a.Name, rel.Entity, a.Field))
				}
			}
		case a.Composite != nil:
			if len(a.Composite.Parts) == 0 {
				errs = append(errs, fmt.Errorf("%s.%s: composite has no parts", e.Name, a.Name))
			}
			for _, p := range a.Composite.Parts {
				part, ok := e.Attribute(p.Attribute)
				if !ok {
					errs = append(errs, fmt.Errorf("%s.%s: composite part %q is not an attribute", e.Name, a.Name, p.Attribute))
					continue
				}
				if part.Composite != nil || part.Type == ir.TypeForeign {
					errs = append(errs, fmt.Errorf("%s.%s: composite part %q must be a column", e.Name, a.Name, p.Attribute))
				}
			}
			for _, name := range append(append([]string(nil), a.Composite.Search...), a.Composite.OrderBy...) {
				if _, ok := e.Attribute(name); !ok {
					errs = append(errs, fmt.Errorf("%s.%s: composite references unknown attribute %q", e.Name, a.Name, name))
				}
			}
		}
	}
	return errs
}
