package metadata

// Standard attributes that are never stored in the document.
const (
	FieldNumberDoc = "number_doc"
	FieldDate      = "date"
	FieldPosted    = "posted"
	FieldID        = "id"
	FieldName      = "name"
	FieldDeleted   = "_deleted"
	FieldIsFolder  = "is_folder"
	FieldRef       = "ref"
)

// numberDocLen is the capacity of a document number.
const numberDocLen = 11

// builtinField synthesizes a standard attribute of classPath. ok is false when
// name is not a standard attribute for this kind and the class fields must be consulted.
func builtinField(kind Kind, classPath, name string) (*Field, bool) {
	f := &Field{Type: TypeDescriptor{Types: []string{TypeString}}}

	switch {
	case kind.IsDocumentLike() && name == FieldNumberDoc:
		f.Synonym = "Номер"
		f.Tooltip = "Номер документа"
		n := numberDocLen
		f.Type.StrLen = &n

	case kind.IsDocumentLike() && name == FieldDate:
		f.Synonym = "Дата"
		f.Tooltip = "Дата документа"
		f.Type.DatePart = DatePartDateTime
		f.Type.Types[0] = TypeDate

	case kind.IsDocumentLike() && name == FieldPosted:
		f.Synonym = "Проведен"
		f.Type.Types[0] = TypeBoolean

	case kind.IsCatalogLike() && name == FieldID:
		f.Synonym = "Код"

	case kind.IsCatalogLike() && name == FieldName:
		f.Synonym = "Наименование"

	case name == FieldDeleted:
		f.Synonym = "Пометка удаления"
		f.Type.Types[0] = TypeBoolean

	case name == FieldIsFolder:
		f.Synonym = "Это группа"
		f.Type.Types[0] = TypeBoolean

	case name == FieldRef:
		f.Synonym = "Ссылка"
		f.Type.IsRef = true
		f.Type.Types[0] = classPath

	default:
		return nil, false
	}
	return f, true
}
