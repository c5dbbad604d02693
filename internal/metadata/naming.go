package metadata

import "strings"

// builtinToInternal maps external (legacy) names of standard attributes to internal ones.
// Several external spellings may map to the same internal name.
var builtinToInternal = map[string]string{
	"DeletionMark": "_deleted",
	"Description":  "name",
	"DataVersion":  "data_version",
	"IsFolder":     "is_folder",
	"Number":       "number_doc",
	"Date":         "date",
	"Дата":         "date",
	"Posted":       "posted",
	"Code":         "id",
	"Parent_Key":   "parent",
	"Owner_Key":    "owner",
	"Owner":        "owner",
	"Ref_Key":      "ref",
	"Ссылка":       "ref",
	"LineNumber":   "row",
}

// builtinToExternal is the canonical reverse of builtinToInternal.
var builtinToExternal = map[string]string{
	"_deleted":   "DeletionMark",
	"name":       "Description",
	"is_folder":  "IsFolder",
	"number_doc": "Number",
	"date":       "Date",
	"posted":     "Posted",
	"id":         "Code",
	"ref":        "Ref_Key",
	"parent":     "Parent_Key",
	"owner":      "Owner_Key",
	"row":        "LineNumber",
}

// Legacy kind prefixes of qualified names.
const externalEnumPrefix = "Перечисление"

var kindFromExternal = map[string]Kind{
	externalEnumPrefix:       KindEnum,
	"Справочник":             KindCatalog,
	"Документ":               KindDocument,
	"РегистрСведений":        KindInfoRegister,
	"РегистрНакопления":      KindAccumRegister,
	"РегистрБухгалтерии":     KindAccountingRegister,
	"ПланВидовХарактеристик": KindCharacteristic,
	"ПланСчетов":             KindChartOfAccounts,
	"Обработка":              KindProcessing,
	"Отчет":                  KindReport,
}

var kindToExternal = func() map[Kind]string {
	m := make(map[Kind]string, len(kindFromExternal))
	for ext, kind := range kindFromExternal {
		m[kind] = ext
	}
	return m
}()

// Names translates identifiers between the internal snake_case convention and
// the external legacy convention. Translation is best-effort and never fails:
// unknown names come back unchanged.
type Names struct {
	toInternal map[string]string
	toExternal map[string]string
}

// NewNames builds both directions of the overflow table from one list of pairs.
// The first occurrence of a name wins on either side.
func NewNames(pairs []NamePair) *Names {
	n := &Names{
		toInternal: make(map[string]string, len(pairs)),
		toExternal: make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		if p.Internal == "" || p.External == "" {
			continue
		}
		if _, ok := n.toInternal[p.External]; !ok {
			n.toInternal[p.External] = p.Internal
		}
		if _, ok := n.toExternal[p.Internal]; !ok {
			n.toExternal[p.Internal] = p.External
		}
	}
	return n
}

// ToInternal translates an external name.
func (n *Names) ToInternal(external string) string {
	if v, ok := builtinToInternal[external]; ok {
		return v
	}
	if n != nil {
		if v, ok := n.toInternal[external]; ok {
			return v
		}
	}
	return external
}

// ToExternal translates an internal name.
func (n *Names) ToExternal(internal string) string {
	if v, ok := builtinToExternal[internal]; ok {
		return v
	}
	if n != nil {
		if v, ok := n.toExternal[internal]; ok {
			return v
		}
	}
	return internal
}

// ClassPathFromExternal converts "Справочник.Номенклатура" to "cat.nom".
// A bare name is an enumeration; an unknown prefix returns the input unchanged.
func (n *Names) ClassPathFromExternal(qualified string) string {
	prefix, name, found := strings.Cut(qualified, ".")
	if !found {
		return ClassPath(KindEnum, qualified)
	}
	kind, ok := kindFromExternal[prefix]
	if !ok {
		return qualified
	}
	return ClassPath(kind, n.ToInternal(name))
}

// ClassPathToExternal is the inverse of ClassPathFromExternal.
func (n *Names) ClassPathToExternal(classPath string) string {
	prefix, name, found := strings.Cut(classPath, ".")
	if !found {
		return externalEnumPrefix + "." + classPath
	}
	ext, ok := kindToExternal[Kind(prefix)]
	if !ok {
		return classPath
	}
	return ext + "." + n.ToExternal(name)
}

// Len returns the number of overflow entries (internal side).
func (n *Names) Len() int {
	if n == nil {
		return 0
	}
	return len(n.toExternal)
}
