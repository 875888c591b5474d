package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ormsql/internal/ir"
)

// CompileEntity parses a CUE value into an EntitySpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Post: { attributes: { id: "id" } }`)
//	spec, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Post")))
//
// Attributes and relations keep their declaration order. An attribute is
// either a type name (`name: "varchar"`) or a struct with a `type` field.
func CompileEntity(v cue.Value) (*ir.EntitySpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.EntitySpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	table, err := optionalString(v, "table")
	if err != nil {
		return nil, err
	}
	spec.Table = table

	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	if !attrsVal.Exists() {
		return nil, &CompileError{
			Field:   "attributes",
			Message: "attributes are required",
			Pos:     v.Pos(),
		}
	}
	spec.Attributes, err = parseAttributes(attrsVal)
	if err != nil {
		return nil, err
	}
	if len(spec.Attributes) == 0 {
		return nil, &CompileError{
			Field:   "attributes",
			Message: "at least one attribute is required",
			Pos:     attrsVal.Pos(),
		}
	}

	relsVal := v.LookupPath(cue.ParsePath("relations"))
	if relsVal.Exists() {
		spec.Relations, err = parseRelations(relsVal)
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}

// parseAttributes extracts attribute definitions in declaration order.
func parseAttributes(v cue.Value) ([]ir.AttributeSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attrs []ir.AttributeSpec
	for iter.Next() {
		attr, err := parseAttribute(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func parseAttribute(name string, v cue.Value) (ir.AttributeSpec, error) {
	attr := ir.AttributeSpec{Name: name}

	// Shorthand: `name: "varchar"`
	if typ, err := v.String(); err == nil {
		attr.Type = typ
		return attr, nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return attr, &CompileError{
			Field:   "attributes." + name,
			Message: "must be a type name or a struct with a type field",
			Pos:     v.Pos(),
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return attr, &CompileError{
			Field:   "attributes." + name + ".type",
			Message: "attribute type is required",
			Pos:     v.Pos(),
		}
	}
	typ, err := typeVal.String()
	if err != nil {
		return attr, formatCUEError(err)
	}
	attr.Type = typ

	if attr.Column, err = optionalString(v, "column"); err != nil {
		return attr, err
	}
	if attr.NotStorable, err = optionalBool(v, "notStorable"); err != nil {
		return attr, err
	}
	if attr.SkipSelect, err = optionalBool(v, "skipSelect"); err != nil {
		return attr, err
	}
	if attr.Relation, err = optionalString(v, "relation"); err != nil {
		return attr, err
	}
	if attr.Field, err = optionalString(v, "field"); err != nil {
		return attr, err
	}

	partsVal := v.LookupPath(cue.ParsePath("parts"))
	if partsVal.Exists() {
		attr.Composite, err = parseComposite(v, partsVal)
		if err != nil {
			return attr, err
		}
	}
	return attr, nil
}

// parseComposite reads the parts of a person-name style attribute.
// A part is an attribute name or { attribute, separator }.
func parseComposite(v, partsVal cue.Value) (*ir.CompositeSpec, error) {
	comp := &ir.CompositeSpec{}

	iter, err := partsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		pv := iter.Value()
		if s, err := pv.String(); err == nil {
			comp.Parts = append(comp.Parts, ir.CompositePart{Attribute: s})
			continue
		}
		attrName, err := pv.LookupPath(cue.ParsePath("attribute")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   "parts",
				Message: "part must be an attribute name or a struct with an attribute field",
				Pos:     pv.Pos(),
			}
		}
		sep, err := optionalString(pv, "separator")
		if err != nil {
			return nil, err
		}
		comp.Parts = append(comp.Parts, ir.CompositePart{Attribute: attrName, Separator: sep})
	}

	if comp.NullSafe, err = optionalBool(v, "nullSafe"); err != nil {
		return nil, err
	}
	if comp.Search, err = optionalStrings(v, "search"); err != nil {
		return nil, err
	}
	if comp.OrderBy, err = optionalStrings(v, "orderBy"); err != nil {
		return nil, err
	}
	return comp, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
