// Package metatest provides a sample metadata document for tests.
package metatest

import "metaschema/internal/metadata"

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Ref builds a reference field to the given class paths.
func Ref(synonym string, classPaths ...string) *metadata.Field {
	return &metadata.Field{Synonym: synonym, Type: metadata.TypeDescriptor{IsRef: true, Types: classPaths}}
}

// String builds a string field of the given capacity.
func String(synonym string, strLen int) *metadata.Field {
	return &metadata.Field{Synonym: synonym, Type: metadata.TypeDescriptor{Types: []string{metadata.TypeString}, StrLen: Int(strLen)}}
}

// Number builds a numeric field.
func Number(synonym string, digits, fraction int) *metadata.Field {
	return &metadata.Field{Synonym: synonym, Type: metadata.TypeDescriptor{
		Types: []string{metadata.TypeNumber}, Digits: Int(digits), FractionFigits: Int(fraction),
	}}
}

// Bool builds a boolean field.
func Bool(synonym string) *metadata.Field {
	return &metadata.Field{Synonym: synonym, Type: metadata.TypeDescriptor{Types: []string{metadata.TypeBoolean}}}
}

// Date builds a date field of the given granularity.
func Date(synonym string, part metadata.DatePart) *metadata.Field {
	return &metadata.Field{Synonym: synonym, Type: metadata.TypeDescriptor{Types: []string{metadata.TypeDate}, DatePart: part}}
}

// Document returns a small order-management schema:
//
//	enm.order_status, cch.properties, cat.nom, cat.units, cat.partners,
//	cat.property_values, doc.calc_order (with tabular sections), ireg.prices
func Document() *metadata.Document {
	doc := metadata.NewDocument()

	doc.Put(metadata.KindEnum, "order_status", &metadata.Class{Name: "order_status", Synonym: "Статус заказа"})

	doc.Put(metadata.KindCharacteristic, "properties", &metadata.Class{
		Name:       "properties",
		Synonym:    "Дополнительные реквизиты",
		CodeLength: 9,
		Fields: map[string]*metadata.Field{
			"type":    {Synonym: "Тип", Type: metadata.TypeDescriptor{Types: []string{metadata.TypeString}}},
			"caption": String("Заголовок", 0),
		},
	})

	doc.Put(metadata.KindCatalog, "nom", &metadata.Class{
		Name:       "nom",
		Synonym:    "Номенклатура",
		CodeLength: 11,
		Fields: map[string]*metadata.Field{
			"article": String("Артикул", 50),
			"unit":    Ref("Единица", "cat.units"),
			"note":    String("Комментарий", 0),
			"weight":  Number("Вес", 15, 3),
			"pack":    Number("В упаковке", 10, 0),
		},
	})
	doc.Put(metadata.KindCatalog, "units", &metadata.Class{Name: "units", Synonym: "Единицы измерения", CodeLength: 4})
	doc.Put(metadata.KindCatalog, "partners", &metadata.Class{Name: "partners", Synonym: "Контрагенты", CodeLength: 9})
	doc.Put(metadata.KindCatalog, "property_values", &metadata.Class{Name: "property_values", Synonym: "Значения свойств"})

	doc.Put(metadata.KindDocument, "calc_order", &metadata.Class{
		Name:    "calc_order",
		Synonym: "Расчет-заказ",
		Fields: map[string]*metadata.Field{
			"partner":   Ref("Контрагент", "cat.partners"),
			"status":    Ref("Статус", "enm.order_status"),
			"amount":    Number("Сумма", 15, 2),
			"shipped":   Bool("Отгружен"),
			"ship_date": Date("Дата отгрузки", metadata.DatePartDate),
			"owner":     Ref("Владелец", "cat.partners", "cat.nom"),
		},
		TabularSections: map[string]*metadata.TabularSection{
			"production": {
				Synonym: "Продукция",
				Fields: map[string]*metadata.Field{
					"nom":      Ref("Номенклатура", "cat.nom"),
					"quantity": Number("Количество", 15, 3),
					"price":    Number("Цена, руб", 15, 2),
					"hidden":   {Synonym: "Служебное", Hide: true, Type: metadata.TypeDescriptor{Types: []string{metadata.TypeString}}},
				},
			},
			"extra_fields": {
				Synonym: "Дополнительные реквизиты",
				Fields: map[string]*metadata.Field{
					"property": Ref("Свойство", "cch.properties"),
					"value": {Synonym: "Значение", Type: metadata.TypeDescriptor{
						IsRef: true,
						Types: []string{metadata.TypeBoolean, "cat.property_values", "cat.nom", metadata.TypeString},
					}},
				},
			},
		},
	})

	doc.Put(metadata.KindInfoRegister, "prices", &metadata.Class{
		Name:    "prices",
		Synonym: "Цены",
		Dimensions: map[string]*metadata.Field{
			"nom": Ref("Номенклатура", "cat.nom"),
		},
		Resources: map[string]*metadata.Field{
			"price": Number("Цена", 15, 2),
		},
	})

	doc.Synonyms = []metadata.NamePair{
		{Internal: "calc_order", External: "РасчетЗаказ"},
		{Internal: "nom", External: "Номенклатура"},
		{Internal: "partners", External: "Контрагенты"},
		{Internal: "order_status", External: "СтатусЗаказа"},
	}
	return doc
}

// Store returns a store loaded with Document.
func Store() *metadata.Store {
	s := metadata.NewStore()
	s.Load(Document())
	return s
}
