package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/ormsql/internal/ir"
)

// parseRelations extracts relation definitions in declaration order.
//
// A relation is either its kind (`comments: "hasMany"`) or a struct:
//
//	teams: {
//		kind:       "manyMany"
//		entity:     "Team"
//		junction:   "EntityTeam"
//		midKeys:    ["entityId", "teamId"]
//		conditions: { entityType: "Account" }
//	}
//
// Defaults for everything but kind are filled in by the schema registry.
func parseRelations(v cue.Value) ([]ir.RelationSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rels []ir.RelationSpec
	for iter.Next() {
		rel, err := parseRelation(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func parseRelation(name string, v cue.Value) (ir.RelationSpec, error) {
	rel := ir.RelationSpec{Name: name}
	field := "relations." + name

	if kind, err := v.String(); err == nil {
		rel.Kind = kind
		return rel, checkKind(field, rel.Kind, v)
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return rel, &CompileError{
			Field:   field + ".kind",
			Message: "relation kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return rel, formatCUEError(err)
	}
	rel.Kind = kind
	if err := checkKind(field, kind, kindVal); err != nil {
		return rel, err
	}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"entity", &rel.Entity},
		{"key", &rel.Key},
		{"foreignKey", &rel.ForeignKey},
		{"foreignType", &rel.ForeignType},
		{"junction", &rel.Junction},
	} {
		if *f.dst, err = optionalString(v, f.name); err != nil {
			return rel, err
		}
	}

	if rel.MidKeys, err = optionalStrings(v, "midKeys"); err != nil {
		return rel, err
	}
	if len(rel.MidKeys) != 0 && len(rel.MidKeys) != 2 {
		return rel, &CompileError{
			Field:   field + ".midKeys",
			Message: fmt.Sprintf("expected two mid keys, got %d", len(rel.MidKeys)),
			Pos:     v.LookupPath(cue.ParsePath("midKeys")).Pos(),
		}
	}

	condVal := v.LookupPath(cue.ParsePath("conditions"))
	if condVal.Exists() {
		condIter, err := condVal.Fields()
		if err != nil {
			return rel, formatCUEError(err)
		}
		rel.Conditions = make(map[string]string)
		for condIter.Next() {
			attr := condIter.Label()
			value, err := condIter.Value().String()
			if err != nil {
				return rel, &CompileError{
					Field:   fmt.Sprintf("%s.conditions.%s", field, attr),
					Message: "condition value must be a string",
					Pos:     condIter.Value().Pos(),
				}
			}
			rel.Conditions[attr] = value
		}
	}

	return rel, nil
}

func checkKind(field, kind string, v cue.Value) error {
	if ir.ValidRelationKinds[kind] {
		return nil
	}
	return &CompileError{
		Field:   field + ".kind",
		Message: fmt.Sprintf("invalid relation kind %q", kind),
		Pos:     v.Pos(),
	}
}
