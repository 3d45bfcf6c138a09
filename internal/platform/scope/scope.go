// Package scope is the single authority for row-level ownership filtering.
// Every repository query that reads, updates or deletes owned rows passes its
// builder through Apply before executing, so an out-of-scope row behaves
// exactly like a missing one.
package scope

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/psiclinic/clinic/internal/platform/auth"
)

// Builder is any squirrel builder that can be narrowed with a WHERE clause
// (SelectBuilder, UpdateBuilder, DeleteBuilder).
type Builder[B any] interface {
	Where(pred interface{}, args ...interface{}) B
}

// Apply restricts b to rows whose ownerColumn equals the principal's id,
// unless the principal bypasses scoping.
func Apply[B Builder[B]](b B, p auth.Principal, ownerColumn string) B {
	if p.BypassesScoping() {
		return b
	}
	return b.Where(sq.Eq{ownerColumn: p.ID})
}

// Allows is Apply's rule for a single, already loaded row.
func Allows(p auth.Principal, ownerID int64) bool {
	return p.BypassesScoping() || ownerID == p.ID
}

// Select starts a PostgreSQL-flavoured select builder.
func Select(columns ...string) sq.SelectBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).Select(columns...)
}

// Update starts a PostgreSQL-flavoured update builder.
func Update(table string) sq.UpdateBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).Update(table)
}

// Delete starts a PostgreSQL-flavoured delete builder.
func Delete(table string) sq.DeleteBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).Delete(table)
}

// Insert starts a PostgreSQL-flavoured insert builder. Inserts are never
// scoped; the owner column is set explicitly by the caller.
func Insert(table string) sq.InsertBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).Insert(table)
}
