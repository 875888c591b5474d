// Package schema resolves entity metadata for the SQL compiler.
//
// A Registry is built once from []ir.EntitySpec. Building fills every
// default the metadata may omit:
//
//   - table and column names: snake case of the entity and attribute names
//   - relation target: singular upper camel case of the relation name (tags -> Tag)
//   - keys per relation kind (belongsTo post -> postId, hasMany -> <owner>Id,
//     hasChildren -> parentId/parentType)
//   - many-to-many junction: the sorted entity pair (Post, Tag -> PostTag,
//     table post_tag) with mid keys postId and tagId
//
// ResolveAttribute classifies an attribute as a column, a foreign field
// reached through a belongs-to relation, a composite expression, or a
// not-storable attribute. Unknown names fail with queryir.ErrUnknownAttribute
// and unknown relations with queryir.ErrUnknownRelation.
//
// A Registry is immutable. Store publishes registries through an
// atomic.Pointer so metadata can be reloaded while compilations run.
package schema
