// Package form derives UI hints (control kinds, grid layouts) from field metadata.
package form

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"metaschema/internal/metadata"
)

// Control is a symbolic UI control kind.
type Control string

const (
	Checkbox        Control = "checkbox"
	IntegerSpinner  Control = "integer_spinner"
	DecimalEditor   Control = "decimal_editor"
	DatePicker      Control = "date_picker"
	ReferencePicker Control = "reference_picker"
	MultilineText   Control = "multiline_text"
	Text            Control = "text"
)

// gridCodes are the column type codes of the grid widget.
var gridCodes = map[Control]string{
	Checkbox:        "ch",
	IntegerSpinner:  "calck",
	DecimalEditor:   "edn",
	DatePicker:      "dhxCalendar",
	ReferencePicker: "ocombo",
	MultilineText:   "txt",
	Text:            "ed",
}

// GridCode returns the grid widget column type of c.
func (c Control) GridCode() string {
	if code, ok := gridCodes[c]; ok {
		return code
	}
	return gridCodes[Text]
}

// spinnerMaxFraction is the scale from which a decimal editor replaces the spinner.
const spinnerMaxFraction = 5

// multilineMinLen is the declared capacity from which strings get a multiline editor.
const multilineMinLen = 100

// ControlFor picks the control kind of a field of type t. sample is an optional
// runtime value whose kind takes priority when consistent with t.
// Reference types always get the reference picker.
func ControlFor(t *metadata.TypeDescriptor, sample any) Control {
	if t.IsRef {
		return ReferencePicker
	}

	switch {
	case isBool(sample) && t.Has(metadata.TypeBoolean):
		return Checkbox
	case isNumber(sample) && t.HasDigits():
		return numeric(t)
	case isDate(sample) && t.DatePart != "":
		return DatePicker
	}

	switch {
	case t.DatePart != "":
		return DatePicker
	case t.HasDigits():
		return numeric(t)
	case t.Has(metadata.TypeBoolean):
		return Checkbox
	case t.HasStrLen() && (t.StrLenValue() >= multilineMinLen || t.StrLenValue() == 0):
		return MultilineText
	}
	return Text
}

func numeric(t *metadata.TypeDescriptor) Control {
	if t.Fraction() < spinnerMaxFraction {
		return IntegerSpinner
	}
	return DecimalEditor
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number, decimal.Decimal, *decimal.Decimal:
		return true
	}
	return false
}

func isDate(v any) bool {
	switch v.(type) {
	case time.Time, *time.Time:
		return true
	}
	return false
}
