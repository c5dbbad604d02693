// Package dto provides the request and response shapes of the schema API.
package dto

import (
	"metaschema/internal/metadata"
)

// ClassSummary is one entry of the class list.
type ClassSummary struct {
	ClassPath string `json:"class_path"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Synonym   string `json:"synonym,omitempty"`
	Table     string `json:"table"`
	External  string `json:"external"`
}

// ListResponse wraps list results.
type ListResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

// ColumnResponse is a rendered column.
type ColumnResponse struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FieldResponse describes one field with its storage and UI mapping.
type FieldResponse struct {
	ClassPath string                  `json:"class_path"`
	Section   string                  `json:"section,omitempty"`
	Field     string                  `json:"field"`
	Synonym   string                  `json:"synonym"`
	Type      metadata.TypeDescriptor `json:"type"`
	// SQL maps dialect name to the column type.
	SQL           map[string]string          `json:"sql"`
	Discriminator map[string]*ColumnResponse `json:"discriminator,omitempty"`
	Control       string                     `json:"control"`
	GridCode      string                     `json:"grid_code"`
}

// NameResponse is a naming translation.
type NameResponse struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ResolveRequest carries the runtime values of a resolution.
type ResolveRequest struct {
	Section  string `form:"section"`
	Ref      string `form:"ref"`
	Type     string `form:"type"`
	Property string `form:"property"`
	Multiple bool   `form:"multiple"`
}

// ResolveResponse lists the class paths of the resolved managers.
type ResolveResponse struct {
	ClassPath string                   `json:"class_path"`
	Field     string                   `json:"field"`
	Found     bool                     `json:"found"`
	Managers  []string                 `json:"managers"`
	Type      *metadata.TypeDescriptor `json:"type,omitempty"`
}

// SuccessResponse is returned by commands without a payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
