package xim

// AttributeBuilder accumulates (name, value) pairs and resolves each
// name against a registry as it is pushed, silently dropping any name
// the registry doesn't recognize -- spec.md §4.2 calls this
// protocol-defined behavior, not an error to surface. The fluent,
// return-Self chain mirrors the builder in
// original_source/src/lib.rs rather than an error-returning one.
type AttributeBuilder struct {
	reg     *AttributeRegistry
	entries []NestedAttr
}

// NewAttributeBuilder starts a builder resolving names against reg.
func NewAttributeBuilder(reg *AttributeRegistry) *AttributeBuilder {
	return &AttributeBuilder{reg: reg}
}

// Push appends a (name, value) pair if name is known, and always
// returns the builder so calls can be chained.
func (b *AttributeBuilder) Push(name AttributeName, value []byte) *AttributeBuilder {
	if a, ok := b.reg.ByName(name); ok {
		b.entries = append(b.entries, NestedAttr{ID: a.ID, Value: value})
	}
	return b
}

// Build returns the accumulated entries.
func (b *AttributeBuilder) Build() []NestedAttr {
	return b.entries
}

// NestedListBuilder builds a depth-1 nested attribute-value list, such
// as the value passed under preeditAttributes/statusAttributes. It is
// the same shape as AttributeBuilder -- XIM bounds nesting at one
// level, so there is no recursive variant.
type NestedListBuilder struct {
	*AttributeBuilder
}

// NewNestedListBuilder starts a nested-list builder resolving names
// against the IC-level registry that owns the enclosing attribute.
func NewNestedListBuilder(reg *AttributeRegistry) *NestedListBuilder {
	return &NestedListBuilder{AttributeBuilder: NewAttributeBuilder(reg)}
}
