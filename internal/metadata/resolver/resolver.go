// Package resolver maps a field's dynamic type to the object manager(s) that
// can hold its value.
package resolver

import (
	"context"
	"sync"

	"metaschema/internal/core/id"
	"metaschema/internal/metadata"
	"metaschema/pkg/logger"
)

// Class paths used by the characteristic value special case.
const (
	PropertiesClass     = "cch.properties"
	PropertyValuesClass = "cat.property_values"
)

// Field names of characteristic rows.
const (
	fieldValue    = "value"
	fieldProperty = "property"
	fieldParam    = "param"
)

// Manager owns persistence and identity of one data class.
type Manager interface {
	ClassPath() string
	// Get probes the store for ref without creating anything.
	Get(ctx context.Context, ref id.ID) (Object, bool)
}

// Object is a realized data object.
type Object interface {
	Manager() Manager
	IsNew() bool
}

// PropertyObject is an object that declares the type of the values it describes.
type PropertyObject interface {
	Object
	ValueType() *metadata.TypeDescriptor
}

// Managers is the object manager registry.
type Managers interface {
	ByClassPath(classPath string) (Manager, bool)
}

// Row is a row-like value owning the field being resolved.
type Row interface {
	Get(field string) any
}

// Fields is a map-backed Row.
type Fields map[string]any

// Get implements Row.
func (f Fields) Get(field string) any { return f[field] }

// Tagged is a runtime value carrying its own type tag.
type Tagged interface {
	TypeTag() string
}

// TypedRef is a reference value with an explicit class path.
type TypedRef struct {
	Type string
	Ref  id.ID
}

// TypeTag implements Tagged.
func (r TypedRef) TypeTag() string { return r.Type }

// Result of a resolution. The zero value means unresolved.
type Result struct {
	// Manager is the single resolved manager.
	Manager Manager
	// Candidates is set instead of Manager for ambiguous fields when multiple results are allowed.
	Candidates []Manager
	// Type is set when a property declares a primitive value type.
	Type *metadata.TypeDescriptor
}

// Found reports whether anything was resolved.
func (r Result) Found() bool {
	return r.Manager != nil || len(r.Candidates) > 0 || r.Type != nil
}

// Replacer signals document replacement.
type Replacer interface {
	OnReplace(fn func(*metadata.Document))
}

// Resolver is the Type Resolver. Single-manager outcomes are memoized per
// field descriptor; the memo is dropped whenever the document is replaced.
type Resolver struct {
	managers Managers
	memo     sync.Map // *metadata.Field -> Manager
	log      *logger.Logger
}

// New creates a resolver over managers. With a non-nil store the memo is
// cleared on every document replacement.
func New(managers Managers, store Replacer) *Resolver {
	r := &Resolver{
		managers: managers,
		log:      logger.Default().WithComponent("resolver"),
	}
	if store != nil {
		store.OnReplace(func(*metadata.Document) { r.Reset() })
	}
	return r
}

// Reset drops every memoized manager.
func (r *Resolver) Reset() {
	r.memo.Clear()
}

// Memoized returns the manager memoized for field.
func (r *Resolver) Memoized(field *metadata.Field) (Manager, bool) {
	v, ok := r.memo.Load(field)
	if !ok {
		return nil, false
	}
	return v.(Manager), true
}

func (r *Resolver) remember(field *metadata.Field, m Manager) Result {
	if m == nil {
		return Result{}
	}
	actual, _ := r.memo.LoadOrStore(field, m)
	return Result{Manager: actual.(Manager)}
}

func (r *Resolver) manager(classPath string) Manager {
	if !metadata.IsClassPath(classPath) {
		return nil
	}
	m, ok := r.managers.ByClassPath(classPath)
	if !ok {
		return nil
	}
	return m
}

// Resolve determines the manager(s) of fieldName on row. value is an optional
// runtime value; a Tagged value selects its own manager. Resolve never fails:
// an unresolvable field yields the zero Result.
func (r *Resolver) Resolve(ctx context.Context, row Row, fieldName string, field *metadata.Field, allowMultiple bool, value any) Result {
	if field == nil {
		return Result{}
	}
	if m, ok := r.Memoized(field); ok {
		return Result{Manager: m}
	}

	types := field.Type.Types
	if len(types) == 1 {
		if metadata.IsClassPath(types[0]) {
			return r.remember(field, r.manager(types[0]))
		}
	} else if tagged, ok := value.(Tagged); ok {
		if m := r.manager(tagged.TypeTag()); m != nil {
			return Result{Manager: m}
		}
	}

	var property any
	if row != nil {
		property = row.Get(fieldProperty)
		if isEmpty(property) {
			property = row.Get(fieldParam)
		}
	}
	if fieldName == fieldValue && !isEmpty(property) {
		return r.resolveByProperty(ctx, property)
	}

	candidates := r.candidates(field)

	var current any
	if row != nil {
		current = row.Get(fieldName)
	}
	if len(candidates) == 1 {
		return r.remember(field, candidates[0])
	}
	if ref, ok := id.FromValue(current); ok && id.IsBlank(ref) {
		if len(candidates) > 0 {
			return Result{Manager: candidates[0]}
		}
		return Result{}
	}
	if allowMultiple {
		if len(candidates) == 0 {
			return Result{}
		}
		return Result{Candidates: candidates}
	}
	if obj, ok := current.(Object); ok && obj != nil {
		if m := obj.Manager(); m != nil {
			return Result{Manager: m}
		}
	}
	if ref, ok := id.FromValue(current); ok {
		// first declared candidate holding ref wins
		for _, m := range candidates {
			if _, found := m.Get(ctx, ref); found {
				return Result{Manager: m}
			}
		}
	}
	return Result{}
}

func (r *Resolver) candidates(field *metadata.Field) []Manager {
	var res []Manager
	for _, tag := range field.Type.Types {
		if m := r.manager(tag); m != nil {
			res = append(res, m)
		}
	}
	return res
}

// resolveByProperty resolves a characteristic value through the type declared
// by its property.
func (r *Resolver) resolveByProperty(ctx context.Context, property any) Result {
	var obj Object
	switch p := property.(type) {
	case Object:
		obj = p
	default:
		ref, ok := id.FromValue(p)
		if !ok {
			return Result{}
		}
		props := r.manager(PropertiesClass)
		if props == nil {
			return Result{}
		}
		found, ok := props.Get(ctx, ref)
		if !ok {
			// an unknown property behaves as a freshly created one
			return Result{Manager: r.manager(PropertyValuesClass)}
		}
		obj = found
	}

	if obj.IsNew() {
		return Result{Manager: r.manager(PropertyValuesClass)}
	}
	po, ok := obj.(PropertyObject)
	if !ok {
		r.log.WithContext(ctx).Debugw("property object declares no value type")
		return Result{}
	}
	typ := po.ValueType()
	if typ == nil {
		return Result{}
	}
	for _, tag := range typ.Types {
		if metadata.IsClassPath(tag) {
			return Result{Manager: r.manager(tag)}
		}
	}
	return Result{Type: typ}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}
