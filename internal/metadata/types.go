package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind is the class-kind prefix of a class path ("doc", "cat", ...).
type Kind string

const (
	KindEnum               Kind = "enm"
	KindCharacteristic     Kind = "cch"
	KindChartOfAccounts    Kind = "cacc"
	KindCatalog            Kind = "cat"
	KindBusinessProcess    Kind = "bp"
	KindTask               Kind = "tsk"
	KindDocument           Kind = "doc"
	KindInfoRegister       Kind = "ireg"
	KindAccumRegister      Kind = "areg"
	KindAccountingRegister Kind = "accreg"
	KindProcessing         Kind = "dp"
	KindReport             Kind = "rep"
)

// Kinds lists every known kind in document order.
var Kinds = []Kind{
	KindEnum, KindCharacteristic, KindChartOfAccounts, KindCatalog, KindBusinessProcess, KindTask,
	KindDocument, KindInfoRegister, KindAccumRegister, KindAccountingRegister, KindProcessing, KindReport,
}

// IsKnown reports whether k is one of Kinds.
func (k Kind) IsKnown() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsDocumentLike reports kinds that carry number_doc, date and posted.
func (k Kind) IsDocumentLike() bool {
	return k == KindDocument || k == KindTask || k == KindBusinessProcess
}

// IsCatalogLike reports kinds that carry id (code) and name.
func (k Kind) IsCatalogLike() bool {
	return k == KindCatalog || k == KindCharacteristic || k == KindChartOfAccounts || k == KindTask
}

// IsRegister reports register kinds (no object identity of their own).
func (k Kind) IsRegister() bool {
	return k == KindInfoRegister || k == KindAccumRegister || k == KindAccountingRegister
}

// SplitClassPath splits "<kind>.<name>". ok is false when there is no dot
// or either part is empty.
func SplitClassPath(classPath string) (kind Kind, name string, ok bool) {
	k, n, found := strings.Cut(classPath, ".")
	if !found || k == "" || n == "" {
		return "", "", false
	}
	return Kind(k), n, true
}

// ClassPath joins kind and name.
func ClassPath(kind Kind, name string) string {
	return string(kind) + "." + name
}

// TableName is the relational table of a class ("doc.calc_order" -> "doc_calc_order").
func TableName(classPath string) string {
	return strings.Replace(classPath, ".", "_", 1)
}

// Primitive type tags.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeNumber  = "number"
	TypeJSON    = "json"
	TypeGUID    = "guid"
)

// DatePart is the granularity of a date field.
type DatePart string

const (
	DatePartDate     DatePart = "date"
	DatePartDateTime DatePart = "date_time"
	DatePartTime     DatePart = "time"
)

// TypeDescriptor is the dynamic type of a field: an ordered set of type tags
// plus constraint hints. Pointer hints distinguish "declared as 0" from "not declared".
type TypeDescriptor struct {
	IsRef          bool     `json:"is_ref"`
	Types          []string `json:"types"`
	StrLen         *int     `json:"str_len,omitempty"`
	DatePart       DatePart `json:"date_part,omitempty"`
	Digits         *int     `json:"digits,omitempty"`
	FractionFigits *int     `json:"fraction_figits,omitempty"`
}

// Has reports whether tag is a member of Types.
func (t *TypeDescriptor) Has(tag string) bool {
	for _, v := range t.Types {
		if v == tag {
			return true
		}
	}
	return false
}

// IsComposite reports a polymorphic field (more than one member type).
func (t *TypeDescriptor) IsComposite() bool {
	return len(t.Types) > 1
}

// ClassPaths returns the reference members in declaration order.
func (t *TypeDescriptor) ClassPaths() []string {
	var res []string
	for _, v := range t.Types {
		if IsClassPath(v) {
			res = append(res, v)
		}
	}
	return res
}

// OnlyEnumerations reports whether every member is an enumeration reference.
func (t *TypeDescriptor) OnlyEnumerations() bool {
	if len(t.Types) == 0 {
		return false
	}
	for _, v := range t.Types {
		if !strings.HasPrefix(v, string(KindEnum)+".") {
			return false
		}
	}
	return true
}

// HasStrLen reports a declared string capacity.
func (t *TypeDescriptor) HasStrLen() bool { return t.StrLen != nil }

// StrLenValue returns the declared capacity or 0.
func (t *TypeDescriptor) StrLenValue() int {
	if t.StrLen == nil {
		return 0
	}
	return *t.StrLen
}

// HasDigits reports declared numeric precision.
func (t *TypeDescriptor) HasDigits() bool { return t.Digits != nil }

// DigitsValue returns the declared precision or 0.
func (t *TypeDescriptor) DigitsValue() int {
	if t.Digits == nil {
		return 0
	}
	return *t.Digits
}

// Fraction returns the declared scale; an undeclared scale counts as 0 (integer).
func (t *TypeDescriptor) Fraction() int {
	if t.FractionFigits == nil {
		return 0
	}
	return *t.FractionFigits
}

// IsClassPath reports a dotted type tag ("cat.nom") as opposed to a primitive tag.
func IsClassPath(tag string) bool {
	_, _, ok := SplitClassPath(tag)
	return ok
}

// Field is the metadata of one field.
type Field struct {
	Synonym       string         `json:"synonym"`
	Note          string         `json:"note,omitempty"`
	Tooltip       string         `json:"tooltip,omitempty"`
	MultilineMode bool           `json:"multiline_mode,omitempty"`
	Hide          bool           `json:"hide,omitempty"`
	ShortName     string         `json:"short_name,omitempty"`
	Type          TypeDescriptor `json:"type"`
}

// TabularSection is a nested row collection of a class.
type TabularSection struct {
	Synonym string            `json:"synonym,omitempty"`
	Hide    bool              `json:"hide,omitempty"`
	Fields  map[string]*Field `json:"fields"`
}

// GridLayout describes the columns of a tabular-section grid.
// Comma-separated strings follow the grid widget's attribute format.
type GridLayout struct {
	Fields    []string `json:"fields"`
	Headers   string   `json:"headers"`
	Widths    string   `json:"widths"`
	MinWidths string   `json:"min_widths"`
	Aligns    string   `json:"aligns"`
	Sortings  string   `json:"sortings"`
	Types     string   `json:"types"`
}

// FormObject holds custom object-form layout overrides.
type FormObject struct {
	TabularSections map[string]*GridLayout `json:"tabular_sections,omitempty"`
}

// Form is the optional custom UI layout block of a class.
type Form struct {
	Synonym string      `json:"synonym,omitempty"`
	Obj     *FormObject `json:"obj,omitempty"`
}

// Class is the metadata of one data class.
type Class struct {
	Name            string                     `json:"name,omitempty"`
	Synonym         string                     `json:"synonym,omitempty"`
	CodeLength      int                        `json:"code_length,omitempty"`
	Hierarchical    bool                       `json:"hierarchical,omitempty"`
	Fields          map[string]*Field          `json:"fields,omitempty"`
	TabularSections map[string]*TabularSection `json:"tabular_sections,omitempty"`
	Dimensions      map[string]*Field          `json:"dimensions,omitempty"`
	Resources       map[string]*Field          `json:"resources,omitempty"`
	Form            *Form                      `json:"form,omitempty"`
	PrintingPlates  any                        `json:"printing_plates,omitempty"`
}

// FieldNames returns field names sorted for deterministic output.
func (c *Class) FieldNames() []string {
	return sortedKeys(c.Fields)
}

// SectionNames returns tabular section names sorted.
func (c *Class) SectionNames() []string {
	names := make([]string, 0, len(c.TabularSections))
	for name := range c.TabularSections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]*Field) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedFieldNames exposes deterministic ordering for register dimension/resource maps.
func SortedFieldNames(m map[string]*Field) []string {
	return sortedKeys(m)
}

// NamePair ties an internal identifier to its external (legacy) counterpart.
type NamePair struct {
	Internal string
	External string
}

// Document is the root metadata structure: kind -> class name -> class.
type Document struct {
	Classes  map[Kind]map[string]*Class
	Synonyms []NamePair
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{Classes: make(map[Kind]map[string]*Class)}
}

// Class returns the class at kind/name or nil.
func (d *Document) Class(kind Kind, name string) *Class {
	if d == nil {
		return nil
	}
	return d.Classes[kind][name]
}

// ClassNames returns kind -> sorted class names.
func (d *Document) ClassNames() map[Kind][]string {
	res := make(map[Kind][]string)
	if d == nil {
		return res
	}
	for kind, byName := range d.Classes {
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		res[kind] = names
	}
	return res
}

// Put adds or replaces a class. Used by tests and embedded documents.
func (d *Document) Put(kind Kind, name string, class *Class) {
	if d.Classes == nil {
		d.Classes = make(map[Kind]map[string]*Class)
	}
	if d.Classes[kind] == nil {
		d.Classes[kind] = make(map[string]*Class)
	}
	d.Classes[kind][name] = class
}

// Wire keys of the naming overflow lists. The legacy key of the external list is
// spelled with a Cyrillic "с"; both spellings are accepted.
const (
	keySynsInternal       = "syns_js"
	keySynsExternal       = "syns_1c"
	keySynsExternalLegacy = "syns_1с"
)

// UnmarshalJSON decodes the wire form: known kind keys hold class maps,
// the syns lists hold the naming overflow. Other keys are ignored.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	doc := NewDocument()
	for key, value := range raw {
		kind := Kind(key)
		if !kind.IsKnown() {
			continue
		}
		var classes map[string]*Class
		if err := json.Unmarshal(value, &classes); err != nil {
			return fmt.Errorf("decode %s classes: %w", key, err)
		}
		for name, class := range classes {
			if class == nil {
				continue
			}
			if class.Name == "" {
				class.Name = name
			}
			doc.Put(kind, name, class)
		}
	}

	var internal, external []string
	if v, ok := raw[keySynsInternal]; ok {
		if err := json.Unmarshal(v, &internal); err != nil {
			return fmt.Errorf("decode %s: %w", keySynsInternal, err)
		}
	}
	ext, ok := raw[keySynsExternal]
	if !ok {
		ext, ok = raw[keySynsExternalLegacy]
	}
	if ok {
		if err := json.Unmarshal(ext, &external); err != nil {
			return fmt.Errorf("decode %s: %w", keySynsExternal, err)
		}
	}
	// Lists are parallel; surplus entries on either side have no counterpart.
	for i := 0; i < len(internal) && i < len(external); i++ {
		doc.Synonyms = append(doc.Synonyms, NamePair{Internal: internal[i], External: external[i]})
	}

	*d = *doc
	return nil
}

// MarshalJSON renders the wire form accepted by UnmarshalJSON.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Classes)+2)
	for kind, classes := range d.Classes {
		out[string(kind)] = classes
	}
	if len(d.Synonyms) > 0 {
		internal := make([]string, len(d.Synonyms))
		external := make([]string, len(d.Synonyms))
		for i, p := range d.Synonyms {
			internal[i] = p.Internal
			external[i] = p.External
		}
		out[keySynsInternal] = internal
		out[keySynsExternal] = external
	}
	return json.Marshal(out)
}
