package tenant

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTenantPredicateMissing is returned when a read or write on a
// tenant-owned table carries no tenant predicate and is not marked System.
var ErrTenantPredicateMissing = errors.New("query on tenant-owned table without tenant predicate")

const systemKey = "tenant:system"

// System marks a statement as a deliberate cross-tenant lookup. Only the
// gateway path uses it, to find which tenant owns an incoming event.
func System(db *gorm.DB) *gorm.DB {
	return db.Set(systemKey, true)
}

// Guard rejects queries, updates and deletes against models that have a
// tenant column but no tenant condition. Inserts are not checked: the
// tenant id is a field of the inserted row.
type Guard struct {
	column string
}

// NewGuard creates a guard for the given tenant column (default "tenant_id")
func NewGuard(column string) *Guard {
	if column == "" {
		column = "tenant_id"
	}
	return &Guard{column: column}
}

// Register installs the guard callbacks on db
func (g *Guard) Register(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant:guard_query", g.check); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant:guard_update", g.check); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("tenant:guard_delete", g.check)
}

func (g *Guard) check(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt.Schema == nil || stmt.SQL.Len() > 0 {
		return
	}
	if _, owned := stmt.Schema.FieldsByDBName[g.column]; !owned {
		return
	}
	if v, ok := db.Get(systemKey); ok {
		if system, _ := v.(bool); system {
			return
		}
	}
	if g.hasTenantCondition(stmt) {
		return
	}
	_ = db.AddError(ErrTenantPredicateMissing)
}

func (g *Guard) hasTenantCondition(stmt *gorm.Statement) bool {
	whereClause, ok := stmt.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := whereClause.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if g.exprContainsTenant(expr) {
			return true
		}
	}
	return false
}

func (g *Guard) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Expr:
		return strings.Contains(e.SQL, g.column)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, g.column)
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == g.column
		}
		if col, ok := e.Column.(string); ok {
			return col == g.column
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == g.column
		}
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if g.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}
