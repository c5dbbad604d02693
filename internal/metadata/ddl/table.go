package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"metaschema/internal/core/apperror"
	"metaschema/internal/metadata"
)

// TableBuilder renders the CREATE TABLE statement of one class.
type TableBuilder interface {
	Build(d Dialect, classPath string, class *metadata.Class) (string, error)
}

// TableBuilderFunc adapts a function to TableBuilder.
type TableBuilderFunc func(d Dialect, classPath string, class *metadata.Class) (string, error)

// Build calls f.
func (f TableBuilderFunc) Build(d Dialect, classPath string, class *metadata.Class) (string, error) {
	return f(d, classPath, class)
}

// maxColumnName is the longest field name used as is in the postgres dialect.
const maxColumnName = 30

// Tables is the default TableBuilder.
type Tables struct{}

// Build implements TableBuilder.
func (Tables) Build(d Dialect, classPath string, class *metadata.Class) (string, error) {
	kind, _, ok := metadata.SplitClassPath(classPath)
	if !ok {
		return "", apperror.NewDDLGeneration(classPath, fmt.Errorf("malformed class path"))
	}
	if class == nil {
		return "", apperror.NewDDLGeneration(classPath, fmt.Errorf("class not found"))
	}

	tb := &tableWriter{d: d, table: metadata.TableName(classPath)}
	var err error
	switch {
	case kind == metadata.KindEnum:
		tb.enumeration()
	case kind.IsRegister():
		err = tb.register(class)
	default:
		err = tb.object(kind, class)
	}
	if err != nil {
		return "", apperror.NewDDLGeneration(classPath, err)
	}
	return tb.String(), nil
}

type tableWriter struct {
	d     Dialect
	table string
	sb    strings.Builder
	// counts shortened column names within one table
	truncated int
}

func (w *tableWriter) pg() bool { return w.d == Postgres }

func (w *tableWriter) open(key string) {
	w.sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	if w.pg() {
		w.sb.WriteString(w.table)
	} else {
		w.sb.WriteString(w.d.Quote(w.table))
	}
	w.sb.WriteString(" (")
	w.sb.WriteString(key)
}

func (w *tableWriter) raw(s string) {
	w.sb.WriteString(", ")
	w.sb.WriteString(s)
}

func (w *tableWriter) String() string {
	return w.sb.String() + ")"
}

func (w *tableWriter) enumeration() {
	if w.pg() {
		w.open("ref character varying(255) PRIMARY KEY NOT NULL")
		w.raw("sequence integer")
		w.raw("synonym character varying(255)")
		return
	}
	w.open("ref CHAR PRIMARY KEY NOT NULL")
	w.raw("sequence INT")
	w.raw("synonym CHAR")
}

func (w *tableWriter) object(kind metadata.Kind, class *metadata.Class) error {
	if w.pg() {
		w.open("ref uuid PRIMARY KEY NOT NULL")
		w.raw("_deleted boolean")
		if kind.IsDocumentLike() {
			w.raw("posted boolean, date timestamp with time zone, number_doc character(11)")
		}
		if kind.IsCatalogLike() {
			if class.CodeLength > 0 {
				w.raw("id character(" + strconv.Itoa(class.CodeLength) + ")")
			}
			w.raw("name character varying(50), is_folder boolean")
		}
	} else {
		w.open("ref CHAR PRIMARY KEY NOT NULL")
		w.raw("`_deleted` BOOLEAN")
		if kind.IsDocumentLike() {
			w.raw("posted boolean, date Date, number_doc CHAR")
		}
		if kind.IsCatalogLike() {
			w.raw("id CHAR, name CHAR, is_folder BOOLEAN")
		}
	}

	if err := w.fields(class.Fields); err != nil {
		return err
	}
	for _, name := range class.SectionNames() {
		if w.pg() {
			w.raw("ts_" + name + " JSON")
		} else {
			w.raw("`ts_" + name + "` JSON")
		}
	}
	return nil
}

func (w *tableWriter) register(class *metadata.Class) error {
	if w.pg() {
		w.open("ref text PRIMARY KEY NOT NULL")
	} else {
		w.open("ref CHAR PRIMARY KEY NOT NULL")
	}
	for _, group := range []map[string]*metadata.Field{class.Dimensions, class.Resources, class.Fields} {
		if err := w.fields(group); err != nil {
			return err
		}
	}
	return nil
}

func (w *tableWriter) fields(fields map[string]*metadata.Field) error {
	for _, name := range metadata.SortedFieldNames(fields) {
		f := fields[name]
		if f == nil {
			return fmt.Errorf("field %q has no descriptor", name)
		}
		column := name
		if w.pg() {
			column = w.shorten(name, f)
		}

		typ := SQLType(w.table, name, &f.Type, w.d)
		if w.pg() {
			w.raw(column + " " + typ)
		} else {
			w.raw(Column{Name: column, Type: typ}.SQL(w.d))
		}

		var base string
		if column != name {
			base = column
		}
		if disc, ok := Discriminator(f, name, base, w.d); ok {
			w.raw(disc.SQL(w.d))
		}
	}
	return nil
}

// shorten fits a long field name into the postgres identifier limit:
// the declared short name, or first char + running index + last 27 chars.
func (w *tableWriter) shorten(name string, f *metadata.Field) string {
	r := []rune(name)
	if len(r) <= maxColumnName {
		return name
	}
	if f.ShortName != "" {
		return f.ShortName
	}
	w.truncated++
	return string(r[:1]) + strconv.Itoa(w.truncated) + string(r[len(r)-27:])
}
