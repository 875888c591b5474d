package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/schema"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// EntitySpec errors (E101-E109)
	ErrEntityNameInvalid    = "E101" // entity name must be an UpperCamelCase identifier
	ErrEntityNoAttributes   = "E102" // at least one attribute required
	ErrInvalidAttributeType = "E103" // unknown attribute type
	ErrDuplicateName        = "E104" // duplicate attribute/relation/entity name
	ErrInvalidRelationKind  = "E105" // unknown relation kind
	ErrForeignIncomplete    = "E106" // foreign attribute without relation or field
	ErrCompositeInvalid     = "E107" // composite without parts or on a non-personName type
	ErrMidKeysInvalid       = "E108" // manyMany mid keys must be two distinct names
	ErrIdentifierInvalid    = "E109" // table/column/junction name is not a plain identifier

	// Cross-entity errors (E110-E119)
	ErrUnknownEntity       = "E110" // relation targets an undeclared entity
	ErrForeignRelation     = "E111" // foreign attribute not through a belongsTo relation
	ErrForeignField        = "E112" // foreign field missing on the target or not readable
	ErrCompositePart       = "E113" // composite part is not a sibling column
	ErrMissingSoftDelete   = "E114" // entity has no deleted attribute (warning-grade)
	ErrRelationKeyNotFound = "E115" // relation key attribute missing on its entity
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports a single EntitySpec and a whole schema ([]EntitySpec); only
// the latter checks references between entities.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.EntitySpec:
		return validateEntitySpec(spec)
	case ir.EntitySpec:
		return validateEntitySpec(&spec)
	case []ir.EntitySpec:
		return validateSchema(spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// entityNamePattern matches UpperCamelCase entity type names.
var entityNamePattern = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)

// identifierPattern matches names that need no escaping inside quotes.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateEntitySpec validates one entity in isolation.
func validateEntitySpec(spec *ir.EntitySpec) []ValidationError {
	var errs []ValidationError
	prefix := spec.Name

	// E101: entity name
	if !entityNamePattern.MatchString(spec.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("invalid entity name %q, expected UpperCamelCase", spec.Name),
			Code:    ErrEntityNameInvalid,
		})
	}

	// E109: explicit table
	if spec.Table != "" && !identifierPattern.MatchString(spec.Table) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".table",
			Message: fmt.Sprintf("invalid table name %q", spec.Table),
			Code:    ErrIdentifierInvalid,
		})
	}

	// E102: at least one attribute
	if len(spec.Attributes) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".attributes",
			Message: "at least one attribute is required",
			Code:    ErrEntityNoAttributes,
		})
	}

	attrNames := make(map[string]bool)
	for i, a := range spec.Attributes {
		field := fmt.Sprintf("%s.attributes[%d]", prefix, i)

		// E104: duplicate attribute
		if attrNames[a.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate attribute name: %q", a.Name),
				Code:    ErrDuplicateName,
			})
		}
		attrNames[a.Name] = true

		// E103: attribute type
		if !ir.ValidAttributeTypes[a.Type] {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("invalid type %q for attribute %q", a.Type, a.Name),
				Code:    ErrInvalidAttributeType,
			})
		}

		// E109: explicit column
		if a.Column != "" && !identifierPattern.MatchString(a.Column) {
			errs = append(errs, ValidationError{
				Field:   field + ".column",
				Message: fmt.Sprintf("invalid column name %q", a.Column),
				Code:    ErrIdentifierInvalid,
			})
		}

		// E106: foreign attributes need both ends
		if a.Type == ir.TypeForeign && (strings.TrimSpace(a.Relation) == "" || strings.TrimSpace(a.Field) == "") {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("foreign attribute %q requires relation and field", a.Name),
				Code:    ErrForeignIncomplete,
			})
		}

		// E107: composites
		if a.Type == ir.TypePersonName && (a.Composite == nil || len(a.Composite.Parts) == 0) {
			errs = append(errs, ValidationError{
				Field:   field + ".parts",
				Message: fmt.Sprintf("personName attribute %q requires parts", a.Name),
				Code:    ErrCompositeInvalid,
			})
		}
		if a.Composite != nil && a.Type != ir.TypePersonName {
			errs = append(errs, ValidationError{
				Field:   field + ".parts",
				Message: fmt.Sprintf("parts are only allowed on personName attributes, %q is %s", a.Name, a.Type),
				Code:    ErrCompositeInvalid,
			})
		}
	}

	relNames := make(map[string]bool)
	for i, r := range spec.Relations {
		field := fmt.Sprintf("%s.relations[%d]", prefix, i)

		// E104: duplicate relation
		if relNames[r.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate relation name: %q", r.Name),
				Code:    ErrDuplicateName,
			})
		}
		relNames[r.Name] = true

		// E105: kind
		if !ir.ValidRelationKinds[r.Kind] {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("invalid relation kind %q", r.Kind),
				Code:    ErrInvalidRelationKind,
			})
		}

		// E108: mid keys
		if len(r.MidKeys) != 0 {
			if r.Kind != ir.RelationManyMany {
				errs = append(errs, ValidationError{
					Field:   field + ".midKeys",
					Message: fmt.Sprintf("midKeys are only allowed on manyMany relations, %q is %s", r.Name, r.Kind),
					Code:    ErrMidKeysInvalid,
				})
			} else if len(r.MidKeys) != 2 || r.MidKeys[0] == r.MidKeys[1] {
				errs = append(errs, ValidationError{
					Field:   field + ".midKeys",
					Message: fmt.Sprintf("manyMany relation %q needs two distinct mid keys", r.Name),
					Code:    ErrMidKeysInvalid,
				})
			}
		}

		// E109: junction
		if r.Junction != "" && !entityNamePattern.MatchString(r.Junction) {
			errs = append(errs, ValidationError{
				Field:   field + ".junction",
				Message: fmt.Sprintf("invalid junction name %q, expected UpperCamelCase", r.Junction),
				Code:    ErrIdentifierInvalid,
			})
		}
	}

	return errs
}

// validateSchema validates every entity and the references between them.
func validateSchema(specs []ir.EntitySpec) []ValidationError {
	var errs []ValidationError

	byName := make(map[string]*ir.EntitySpec, len(specs))
	for i := range specs {
		spec := &specs[i]
		errs = append(errs, validateEntitySpec(spec)...)
		if byName[spec.Name] != nil {
			errs = append(errs, ValidationError{
				Field:   spec.Name,
				Message: fmt.Sprintf("duplicate entity name: %q", spec.Name),
				Code:    ErrDuplicateName,
			})
			continue
		}
		byName[spec.Name] = spec
	}

	for i := range specs {
		errs = append(errs, validateReferences(&specs[i], byName)...)
	}
	return errs
}

func validateReferences(spec *ir.EntitySpec, byName map[string]*ir.EntitySpec) []ValidationError {
	var errs []ValidationError

	rels := make(map[string]ir.RelationSpec, len(spec.Relations))
	for i, r := range spec.Relations {
		rels[r.Name] = r
		target := relationTarget(r)
		if target == "" {
			continue
		}
		// E110: target entity
		if byName[target] == nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.relations[%d].entity", spec.Name, i),
				Message: fmt.Sprintf("relation %q targets unknown entity %q", r.Name, target),
				Code:    ErrUnknownEntity,
			})
			continue
		}
		// E115: explicit keys must exist
		if r.Kind == ir.RelationBelongsTo && r.Key != "" && !hasAttribute(spec, r.Key) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.relations[%d].key", spec.Name, i),
				Message: fmt.Sprintf("relation %q key %q is not an attribute of %s", r.Name, r.Key, spec.Name),
				Code:    ErrRelationKeyNotFound,
			})
		}
		if (r.Kind == ir.RelationHasMany || r.Kind == ir.RelationHasChildren) && r.ForeignKey != "" && !hasAttribute(byName[target], r.ForeignKey) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.relations[%d].foreignKey", spec.Name, i),
				Message: fmt.Sprintf("relation %q foreign key %q is not an attribute of %s", r.Name, r.ForeignKey, target),
				Code:    ErrRelationKeyNotFound,
			})
		}
	}

	for i, a := range spec.Attributes {
		field := fmt.Sprintf("%s.attributes[%d]", spec.Name, i)
		switch {
		case a.Type == ir.TypeForeign && a.Relation != "":
			r, ok := rels[a.Relation]
			// E111
			if !ok || r.Kind != ir.RelationBelongsTo {
				errs = append(errs, ValidationError{
					Field:   field + ".relation",
					Message: fmt.Sprintf("foreign attribute %q must go through a belongsTo relation, got %q", a.Name, a.Relation),
					Code:    ErrForeignRelation,
				})
				continue
			}
			// E112
			target := byName[relationTarget(r)]
			if target == nil {
				continue
			}
			fa, ok := findAttribute(target, a.Field)
			if !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".field",
					Message: fmt.Sprintf("%s has no attribute %q", target.Name, a.Field),
					Code:    ErrForeignField,
				})
			} else if fa.Type == ir.TypeForeign || fa.NotStorable {
				errs = append(errs, ValidationError{
					Field:   field + ".field",
					Message: fmt.Sprintf("%s.%s must be a column or a composite", target.Name, a.Field),
					Code:    ErrForeignField,
				})
			}

		case a.Composite != nil:
			// E113
			for _, p := range a.Composite.Parts {
				part, ok := findAttribute(spec, p.Attribute)
				if !ok || part.Type == ir.TypeForeign || part.Composite != nil || part.NotStorable {
					errs = append(errs, ValidationError{
						Field:   field + ".parts",
						Message: fmt.Sprintf("composite part %q of %q must be a column of %s", p.Attribute, a.Name, spec.Name),
						Code:    ErrCompositePart,
					})
				}
			}
		}
	}
	return errs
}

// relationTarget returns the declared or inferred target entity of r.
// belongsToParent has no fixed target.
func relationTarget(r ir.RelationSpec) string {
	if r.Kind == ir.RelationBelongsToParent {
		return ""
	}
	if r.Entity != "" {
		return r.Entity
	}
	return schema.EntityForRelation(r.Name)
}

func hasAttribute(spec *ir.EntitySpec, name string) bool {
	_, ok := findAttribute(spec, name)
	return ok
}

func findAttribute(spec *ir.EntitySpec, name string) (ir.AttributeSpec, bool) {
	for _, a := range spec.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return ir.AttributeSpec{}, false
}

// SoftDeleteWarnings lists entities without a deleted attribute. Their
// statements carry no soft-delete predicate and deletes must be hard.
func SoftDeleteWarnings(specs []ir.EntitySpec) []ValidationError {
	var out []ValidationError
	for _, s := range specs {
		if !hasAttribute(&s, "deleted") {
			out = append(out, ValidationError{
				Field:   s.Name,
				Message: "no deleted attribute; soft delete is disabled",
				Code:    ErrMissingSoftDelete,
			})
		}
	}
	return out
}
