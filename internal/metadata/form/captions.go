package form

import (
	"strings"

	"metaschema/internal/metadata"
)

// ContactInformation is the tabular section with a fixed column set.
const ContactInformation = "contact_information"

var contactInformationFields = []string{"type", "kind", "presentation"}

// ClassSource resolves class descriptors by class path.
type ClassSource interface {
	Get(classPath string) *metadata.Class
}

// Captions builds the grid layout of tabular section section of classPath.
// A custom form layout of the class wins over the generated one. ok is false
// for an unknown class or section, and when the custom form has no layout for section.
func Captions(classes ClassSource, classPath, section string) (*metadata.GridLayout, bool) {
	class := classes.Get(classPath)
	if class == nil {
		return nil, false
	}
	ts, ok := class.TabularSections[section]
	if !ok || ts == nil {
		return nil, false
	}

	if class.Form != nil && class.Form.Obj != nil {
		custom, ok := class.Form.Obj.TabularSections[section]
		if !ok || custom == nil {
			return nil, false
		}
		layout := *custom
		layout.Fields = append([]string(nil), custom.Fields...)
		return &layout, true
	}

	names := metadata.SortedFieldNames(ts.Fields)
	if section == ContactInformation {
		names = contactInformationFields
	}

	layout := &metadata.GridLayout{
		Fields:   []string{"row"},
		Headers:  "№",
		Widths:   "40",
		Sortings: "na",
		Types:    "cntr",
	}
	headers := []string{layout.Headers}
	types := []string{layout.Types}
	sortings := []string{layout.Sortings}

	for _, name := range names {
		f := ts.Fields[name]
		if f == nil || f.Hide {
			continue
		}
		header := name
		if f.Synonym != "" {
			header = strings.ReplaceAll(f.Synonym, ",", " ")
		}
		layout.Fields = append(layout.Fields, name)
		headers = append(headers, header)
		types = append(types, ControlFor(&f.Type, nil).GridCode())
		sortings = append(sortings, "na")
	}

	layout.Headers = strings.Join(headers, ",")
	layout.Types = strings.Join(types, ",")
	layout.Sortings = strings.Join(sortings, ",")
	return layout, true
}
