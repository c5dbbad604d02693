// Package ddl maps field metadata to relational column types and renders
// CREATE TABLE statements for every class of a metadata document.
package ddl

import (
	"fmt"
	"strings"

	"metaschema/internal/metadata"
)

// Dialect selects the SQL rendering.
type Dialect int

const (
	// Legacy is the embedded browser-side engine dialect (MySQL-like, coarse types).
	Legacy Dialect = iota
	// Postgres is the server-side dialect.
	Postgres
)

// ParseDialect parses a configuration value.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql", "pg":
		return Postgres, nil
	case "legacy", "alasql", "mysql":
		return Legacy, nil
	default:
		return Legacy, fmt.Errorf("unknown sql dialect %q", s)
	}
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "legacy"
}

// Quote masks a column name.
func (d Dialect) Quote(name string) string {
	if d == Postgres {
		return `"` + name + `"`
	}
	return "`" + name + "`"
}

// Prefix is the database-selection statement opening a full script.
func (d Dialect) Prefix() string {
	if d == Postgres {
		return ""
	}
	return "USE md; "
}

// Column types shared by the branches below.
const (
	legacyChar  = "CHAR"
	legacyDate  = "Date"
	legacyInt   = "INT"
	legacyFloat = "FLOAT"
	typeBoolean = "BOOLEAN"
	typeJSON    = "JSON"

	pgUUID        = "uuid"
	pgText        = "text"
	pgVarchar255  = "character varying(255)"
	pgEnumVarchar = "character varying(100)"
	pgTimestampTZ = "timestamp with time zone"
	pgTime        = "time without time zone"
	pgInteger     = "integer"
	pgBigint      = "bigint"

	// integers with this many digits or more need bigint
	pgBigintDigits = 7
	// minimal width of a reference stored as text
	refTextWidth = 36
)

// jsonColumns are free-form structured fields stored as JSON regardless of
// their declared type, keyed by "<table>.<field>".
var jsonColumns = map[string]struct{}{
	"cch_properties.type":       {},
	"cat_production_params.svg": {},
}

// SQLType returns the column type of field fieldName of table tableName.
// The result depends on its arguments only.
func SQLType(tableName, fieldName string, t *metadata.TypeDescriptor, d Dialect) string {
	pg := d == Postgres

	if _, ok := jsonColumns[tableName+"."+fieldName]; ok {
		return typeJSON
	}

	switch {
	case t.IsRef || t.Has(metadata.TypeGUID):
		switch {
		case !pg:
			return legacyChar
		case t.OnlyEnumerations():
			return pgEnumVarchar
		case !t.HasStrLen():
			return pgUUID
		default:
			return varchar(max(refTextWidth, t.StrLenValue()))
		}

	case t.HasStrLen():
		if !pg {
			return legacyChar
		}
		if n := t.StrLenValue(); n > 0 {
			return varchar(n)
		}
		return pgText

	case t.DatePart != "":
		switch {
		case !pg || t.DatePart == metadata.DatePartDate:
			return legacyDate
		case t.DatePart == metadata.DatePartDateTime:
			return pgTimestampTZ
		default:
			return pgTime
		}

	case t.HasDigits():
		if t.Fraction() == 0 {
			if !pg {
				return legacyInt
			}
			if t.DigitsValue() < pgBigintDigits {
				return pgInteger
			}
			return pgBigint
		}
		if !pg {
			return legacyFloat
		}
		return fmt.Sprintf("numeric(%d,%d)", t.DigitsValue(), t.Fraction())

	case t.Has(metadata.TypeBoolean):
		return typeBoolean

	case t.Has(metadata.TypeJSON):
		return typeJSON
	}

	if pg {
		return pgVarchar255
	}
	return legacyChar
}

func varchar(n int) string {
	return fmt.Sprintf("character varying(%d)", n)
}

// Column is one rendered column definition.
type Column struct {
	Name string
	Type string
}

// SQL renders the column with a masked name.
func (c Column) SQL(d Dialect) string {
	return d.Quote(c.Name) + " " + c.Type
}

// discriminatorNameLen is the prefix kept from the field name before "_T".
const discriminatorNameLen = 29

// Discriminator returns the sibling column that records which member type a
// polymorphic field currently holds. base overrides name as the column stem.
// ok is false for single-type fields and for the generic "type" field.
func Discriminator(field *metadata.Field, name, base string, d Dialect) (Column, bool) {
	if field == nil || !field.Type.IsComposite() || name == "type" {
		return Column{}, false
	}
	stem := name
	if base != "" {
		stem = base
	}
	if r := []rune(stem); len(r) > discriminatorNameLen {
		stem = string(r[:discriminatorNameLen])
	}
	typ := legacyChar
	if d == Postgres {
		typ = pgVarchar255
	}
	return Column{Name: stem + "_T", Type: typ}, true
}
