package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"metaschema/internal/core/apperror"
	"metaschema/internal/core/id"
	"metaschema/internal/objects"
)

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var _ objects.Probe = (*ObjectProbe)(nil)

// ObjectProbe reads stored objects of the generated tables as JSON rows.
type ObjectProbe struct {
	db      QuerierProvider
	builder squirrel.StatementBuilderType
}

// NewObjectProbe creates a probe.
func NewObjectProbe(db QuerierProvider) *ObjectProbe {
	return &ObjectProbe{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

type objectRow struct {
	Body objects.Attributes `db:"body"`
}

// Load implements objects.Probe. A missing table row is a miss, not an error.
func (p *ObjectProbe) Load(ctx context.Context, table string, ref id.ID) (objects.Attributes, bool, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, false, apperror.NewValidation(fmt.Sprintf("invalid table name %q", table))
	}

	query, args, err := p.builder.
		Select("to_jsonb(t) AS body").
		From(table + " t").
		Where(squirrel.Eq{"t.ref": ref.String()}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build query: %w", err)
	}

	var row objectRow
	if err := pgxscan.Get(ctx, p.db.GetQuerier(ctx), &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, apperror.NewDatabase(fmt.Errorf("load %s %s: %w", table, ref, err))
	}
	return row.Body, true, nil
}
