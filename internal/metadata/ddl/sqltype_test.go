package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"metaschema/internal/metadata"
	"metaschema/internal/metadata/metatest"
)

func td(types ...string) metadata.TypeDescriptor {
	return metadata.TypeDescriptor{Types: types}
}

func TestSQLType(t *testing.T) {
	withStrLen := func(t metadata.TypeDescriptor, n int) metadata.TypeDescriptor {
		t.StrLen = metatest.Int(n)
		return t
	}
	ref := func(paths ...string) metadata.TypeDescriptor {
		return metadata.TypeDescriptor{IsRef: true, Types: paths}
	}
	number := func(digits int, fraction *int) metadata.TypeDescriptor {
		return metadata.TypeDescriptor{Types: []string{"number"}, Digits: metatest.Int(digits), FractionFigits: fraction}
	}
	date := func(part metadata.DatePart) metadata.TypeDescriptor {
		return metadata.TypeDescriptor{Types: []string{"date"}, DatePart: part}
	}

	tests := []struct {
		name     string
		table    string
		field    string
		typ      metadata.TypeDescriptor
		postgres string
		legacy   string
	}{
		{"properties type escape", "cch_properties", "type", withStrLen(td("string"), 10), "JSON", "JSON"},
		{"production params svg escape", "cat_production_params", "svg", td("string"), "JSON", "JSON"},
		{"same field elsewhere", "cat_nom", "type", td("string"), "character varying(255)", "CHAR"},
		{"reference", "t", "f", ref("cat.foo"), "uuid", "CHAR"},
		{"reference with short str_len", "t", "f", withStrLen(ref("cat.foo"), 10), "character varying(36)", "CHAR"},
		{"reference with long str_len", "t", "f", withStrLen(ref("cat.foo"), 50), "character varying(50)", "CHAR"},
		{"enumerations only", "t", "f", ref("enm.a", "enm.b"), "character varying(100)", "CHAR"},
		{"guid member", "t", "f", td("guid"), "uuid", "CHAR"},
		{"bounded string", "t", "f", withStrLen(td("string"), 20), "character varying(20)", "CHAR"},
		{"unbounded string", "t", "f", withStrLen(td("string"), 0), "text", "CHAR"},
		{"date", "t", "f", date(metadata.DatePartDate), "Date", "Date"},
		{"date time", "t", "f", date(metadata.DatePartDateTime), "timestamp with time zone", "Date"},
		{"time", "t", "f", date(metadata.DatePartTime), "time without time zone", "Date"},
		{"small integer", "t", "f", number(6, metatest.Int(0)), "integer", "INT"},
		{"big integer", "t", "f", number(7, metatest.Int(0)), "bigint", "INT"},
		{"undeclared scale is integer", "t", "f", number(10, nil), "bigint", "INT"},
		{"decimal", "t", "f", number(15, metatest.Int(2)), "numeric(15,2)", "FLOAT"},
		{"boolean", "t", "f", td("boolean"), "BOOLEAN", "BOOLEAN"},
		{"json", "t", "f", td("json"), "JSON", "JSON"},
		{"default", "t", "f", td("string"), "character varying(255)", "CHAR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := tt.typ
			assert.Equal(t, tt.postgres, SQLType(tt.table, tt.field, &typ, Postgres))
			assert.Equal(t, tt.legacy, SQLType(tt.table, tt.field, &typ, Legacy))
			// pure: repeated calls agree
			assert.Equal(t, SQLType(tt.table, tt.field, &typ, Postgres), SQLType(tt.table, tt.field, &typ, Postgres))
		})
	}
}

func TestDiscriminator(t *testing.T) {
	composite := metatest.Ref("Владелец", "cat.partners", "cat.nom")

	col, ok := Discriminator(composite, "owner", "", Postgres)
	assert.True(t, ok)
	assert.Equal(t, Column{Name: "owner_T", Type: "character varying(255)"}, col)
	assert.Equal(t, `"owner_T" character varying(255)`, col.SQL(Postgres))

	col, ok = Discriminator(composite, "owner", "", Legacy)
	assert.True(t, ok)
	assert.Equal(t, "`owner_T` CHAR", col.SQL(Legacy))

	col, ok = Discriminator(composite, "owner", "o1_short", Postgres)
	assert.True(t, ok)
	assert.Equal(t, "o1_short_T", col.Name)

	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	col, ok = Discriminator(composite, long, "", Postgres)
	assert.True(t, ok)
	assert.Equal(t, long[:29]+"_T", col.Name)

	_, ok = Discriminator(composite, "type", "", Postgres)
	assert.False(t, ok)

	_, ok = Discriminator(metatest.Ref("x", "cat.nom"), "nom", "", Postgres)
	assert.False(t, ok)

	_, ok = Discriminator(nil, "nom", "", Postgres)
	assert.False(t, ok)
}

func TestDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	assert.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("alasql")
	assert.NoError(t, err)
	assert.Equal(t, Legacy, d)

	_, err = ParseDialect("oracle")
	assert.Error(t, err)

	assert.Equal(t, "`x`", Legacy.Quote("x"))
	assert.Equal(t, `"x"`, Postgres.Quote("x"))
	assert.Equal(t, "USE md; ", Legacy.Prefix())
	assert.Equal(t, "", Postgres.Prefix())
}
