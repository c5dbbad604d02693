package objects

import (
	"metaschema/internal/core/id"
	"metaschema/internal/metadata"
	"metaschema/internal/metadata/resolver"
)

// fieldType is the attribute of a characteristic kind holding its value type.
const fieldType = "type"

// Object is a generic data object: a reference, its manager and attribute values.
type Object struct {
	ref   id.ID
	mgr   *Manager
	isNew bool
	attrs Attributes
}

var (
	_ resolver.Object         = (*Object)(nil)
	_ resolver.PropertyObject = (*Object)(nil)
	_ resolver.Row            = (*Object)(nil)
)

// Ref returns the object reference.
func (o *Object) Ref() id.ID { return o.ref }

// Manager implements resolver.Object.
func (o *Object) Manager() resolver.Manager {
	if o == nil || o.mgr == nil {
		return nil
	}
	return o.mgr
}

// IsNew reports an object that has never been stored.
func (o *Object) IsNew() bool { return o.isNew }

// Get implements resolver.Row. The reference is available as "ref".
func (o *Object) Get(field string) any {
	if field == metadata.FieldRef {
		return o.ref
	}
	return o.attrs.Get(field)
}

// Attributes returns the object values.
func (o *Object) Attributes() Attributes { return o.attrs }

// ValueType returns the value type declared by a characteristic-kind object.
func (o *Object) ValueType() *metadata.TypeDescriptor {
	return o.attrs.TypeDescriptor(fieldType)
}
