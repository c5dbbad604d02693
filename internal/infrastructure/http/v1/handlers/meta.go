package handlers

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"metaschema/internal/core/apperror"
	"metaschema/internal/core/id"
	"metaschema/internal/infrastructure/http/v1/dto"
	"metaschema/internal/metadata"
	"metaschema/internal/metadata/ddl"
	"metaschema/internal/metadata/form"
	"metaschema/internal/metadata/resolver"
)

// MetaHandler serves the loaded schema: classes, fields with their column
// and control mapping, grid captions, naming translation, type resolution
// and DDL.
type MetaHandler struct {
	*BaseHandler
	store     *metadata.Store
	generator *ddl.Generator
	tables    ddl.TableBuilder
	resolver  *resolver.Resolver
}

// NewMetaHandler creates a schema handler. resolver may be nil, which disables
// the resolve endpoint.
func NewMetaHandler(base *BaseHandler, store *metadata.Store, generator *ddl.Generator, res *resolver.Resolver) *MetaHandler {
	return &MetaHandler{
		BaseHandler: base,
		store:       store,
		generator:   generator,
		tables:      ddl.Tables{},
		resolver:    res,
	}
}

func (h *MetaHandler) requireLoaded(c *gin.Context) bool {
	if !h.store.Loaded() {
		h.Error(c, apperror.NewMetadataNotLoaded())
		return false
	}
	return true
}

func (h *MetaHandler) class(c *gin.Context) (string, *metadata.Class, bool) {
	classPath := c.Param("class")
	class := h.store.Get(classPath)
	if class == nil {
		h.Error(c, apperror.NewNotFound("class", classPath))
		return classPath, nil, false
	}
	return classPath, class, true
}

func dialectOf(c *gin.Context) (ddl.Dialect, error) {
	d, err := ddl.ParseDialect(c.Query("dialect"))
	if err != nil {
		return d, apperror.NewValidation(err.Error())
	}
	return d, nil
}

// ListClasses returns the classes of the loaded document, optionally of one kind.
// GET /api/v1/meta/classes?kind=cat
func (h *MetaHandler) ListClasses(c *gin.Context) {
	if !h.requireLoaded(c) {
		return
	}
	filter := metadata.Kind(c.Query("kind"))
	doc, names := h.store.Snapshot()

	classes := doc.ClassNames()
	kinds := ddl.KindOrder()
	for _, kind := range sortedKinds(classes) {
		if !slices.Contains(kinds, kind) {
			kinds = append(kinds, kind)
		}
	}

	items := make([]dto.ClassSummary, 0)
	for _, kind := range kinds {
		if filter != "" && kind != filter {
			continue
		}
		for _, name := range classes[kind] {
			classPath := metadata.ClassPath(kind, name)
			class := doc.Class(kind, name)
			items = append(items, dto.ClassSummary{
				ClassPath: classPath,
				Kind:      string(kind),
				Name:      name,
				Synonym:   class.Synonym,
				Table:     metadata.TableName(classPath),
				External:  names.ClassPathToExternal(classPath),
			})
		}
	}
	h.OK(c, dto.ListResponse{Items: items, Total: len(items)})
}

func sortedKinds(classes map[metadata.Kind][]string) []metadata.Kind {
	kinds := make([]metadata.Kind, 0, len(classes))
	for kind := range classes {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// GetClass returns the class descriptor.
// GET /api/v1/meta/classes/:class
func (h *MetaHandler) GetClass(c *gin.Context) {
	if !h.requireLoaded(c) {
		return
	}
	if _, class, ok := h.class(c); ok {
		h.OK(c, class)
	}
}

// lookupField finds a class field, a built-in attribute, or with section set
// a tabular section field.
func (h *MetaHandler) lookupField(c *gin.Context, classPath string, class *metadata.Class, section, name string) (*metadata.Field, bool) {
	var field *metadata.Field
	if section != "" {
		ts := class.TabularSections[section]
		if ts == nil {
			h.Error(c, apperror.NewNotFound("tabular section", classPath+"."+section))
			return nil, false
		}
		field = ts.Fields[name]
	} else {
		field = h.store.Field(classPath, name)
	}
	if field == nil {
		h.Error(c, apperror.NewNotFound("field", classPath+"."+name))
		return nil, false
	}
	return field, true
}

// GetField describes one field: column types in both dialects, the
// discriminator column of composite fields and the form control.
// GET /api/v1/meta/classes/:class/fields/:field?section=production
func (h *MetaHandler) GetField(c *gin.Context) {
	if !h.requireLoaded(c) {
		return
	}
	classPath, class, ok := h.class(c)
	if !ok {
		return
	}
	section := c.Query("section")
	name := c.Param("field")
	field, ok := h.lookupField(c, classPath, class, section, name)
	if !ok {
		return
	}

	table := metadata.TableName(classPath)
	resp := dto.FieldResponse{
		ClassPath: classPath,
		Section:   section,
		Field:     name,
		Synonym:   field.Synonym,
		Type:      field.Type,
		SQL:       make(map[string]string, 2),
	}
	for _, d := range []ddl.Dialect{ddl.Postgres, ddl.Legacy} {
		resp.SQL[d.String()] = ddl.SQLType(table, name, &field.Type, d)
		if col, ok := ddl.Discriminator(field, name, field.ShortName, d); ok {
			if resp.Discriminator == nil {
				resp.Discriminator = make(map[string]*dto.ColumnResponse, 2)
			}
			resp.Discriminator[d.String()] = &dto.ColumnResponse{Name: col.Name, Type: col.Type}
		}
	}
	control := form.ControlFor(&field.Type, nil)
	resp.Control = string(control)
	resp.GridCode = control.GridCode()

	h.OK(c, resp)
}

// GetCaptions returns the grid layout of a tabular section.
// GET /api/v1/meta/classes/:class/sections/:section/captions
func (h *MetaHandler) GetCaptions(c *gin.Context) {
	if !h.requireLoaded(c) {
		return
	}
	classPath := c.Param("class")
	section := c.Param("section")
	layout, ok := form.Captions(h.store, classPath, section)
	if !ok {
		h.Error(c, apperror.NewNotFound("tabular section", classPath+"."+section))
		return
	}
	h.OK(c, layout)
}

// ResolveField resolves the manager(s) of a reference field for the given
// runtime values.
// GET /api/v1/meta/classes/:class/fields/:field/resolve?ref=...&property=...&multiple=true
func (h *MetaHandler) ResolveField(c *gin.Context) {
	if h.resolver == nil {
		h.Error(c, apperror.NewNotFound("resolver", "objects"))
		return
	}
	if !h.requireLoaded(c) {
		return
	}
	var req dto.ResolveRequest
	if !h.BindQuery(c, &req) {
		return
	}
	classPath, class, ok := h.class(c)
	if !ok {
		return
	}
	name := c.Param("field")
	field, ok := h.lookupField(c, classPath, class, req.Section, name)
	if !ok {
		return
	}

	row := resolver.Fields{}
	if req.Ref != "" {
		ref, err := id.Parse(req.Ref)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid ref").WithDetail("ref", req.Ref))
			return
		}
		row[name] = ref
	}
	if req.Property != "" {
		prop, err := id.Parse(req.Property)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid property").WithDetail("property", req.Property))
			return
		}
		row["property"] = prop
	}
	var value any
	if req.Type != "" {
		value = resolver.TypedRef{Type: req.Type}
	}

	res := h.resolver.Resolve(c.Request.Context(), row, name, field, req.Multiple, value)
	resp := dto.ResolveResponse{
		ClassPath: classPath,
		Field:     name,
		Found:     res.Found(),
		Managers:  []string{},
		Type:      res.Type,
	}
	if res.Manager != nil {
		resp.Managers = append(resp.Managers, res.Manager.ClassPath())
	}
	for _, m := range res.Candidates {
		resp.Managers = append(resp.Managers, m.ClassPath())
	}
	h.OK(c, resp)
}

// TableDDL returns the CREATE TABLE statement of one class.
// GET /api/v1/meta/classes/:class/ddl?dialect=postgres
func (h *MetaHandler) TableDDL(c *gin.Context) {
	if !h.requireLoaded(c) {
		return
	}
	d, err := dialectOf(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	classPath, class, ok := h.class(c)
	if !ok {
		return
	}
	stmt, err := h.tables.Build(d, classPath, class)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Text(c, stmt)
}

// Script returns the DDL script of the whole document.
// GET /api/v1/meta/ddl?dialect=postgres
func (h *MetaHandler) Script(c *gin.Context) {
	if !h.requireLoaded(c) {
		return
	}
	d, err := dialectOf(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	script, err := h.generator.Generate(c.Request.Context(), ddl.Options{Dialect: d})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Text(c, script)
}

// ToInternal translates an external name; dotted names are treated as
// qualified class names.
// GET /api/v1/meta/names/to-internal?name=Справочник.Номенклатура
func (h *MetaHandler) ToInternal(c *gin.Context) {
	name, ok := h.nameParam(c)
	if !ok {
		return
	}
	names := h.store.Names()
	out := names.ToInternal(name)
	if strings.Contains(name, ".") {
		out = names.ClassPathFromExternal(name)
	}
	h.OK(c, dto.NameResponse{Input: name, Output: out})
}

// ToExternal translates an internal name or class path.
// GET /api/v1/meta/names/to-external?name=cat.nom
func (h *MetaHandler) ToExternal(c *gin.Context) {
	name, ok := h.nameParam(c)
	if !ok {
		return
	}
	names := h.store.Names()
	out := names.ToExternal(name)
	if strings.Contains(name, ".") {
		out = names.ClassPathToExternal(name)
	}
	h.OK(c, dto.NameResponse{Input: name, Output: out})
}

func (h *MetaHandler) nameParam(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		h.Error(c, apperror.NewValidation("name is required"))
		return "", false
	}
	return name, true
}

// Reload refetches the documents from the source.
// POST /api/v1/meta/reload
func (h *MetaHandler) Reload(c *gin.Context) {
	if err := h.store.Reload(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "metadata reloaded")
}
