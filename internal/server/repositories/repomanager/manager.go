package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/invoicer/internal/dbx"
	"github.com/dmitrijs2005/invoicer/internal/server/repositories/applied"
	"github.com/dmitrijs2005/invoicer/internal/server/repositories/invoices"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same repositories inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Invoices(db dbx.DBTX) invoices.Repository
	AppliedRequests(db dbx.DBTX) applied.Repository
}
