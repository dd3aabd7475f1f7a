// Package repository holds the Postgres queries behind the resolver, intake
// and seed binaries.
//
// Queries follows the layout of generated query code: one method per
// statement over a DBTX that is either the pool or a transaction.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// New creates a query set over db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries is the statement set.
type Queries struct {
	db DBTX
}

// WithTx returns a query set bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
