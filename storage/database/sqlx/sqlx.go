// Package sqlxrepos implements the postgres repositories with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// postgres error codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

type base struct {
	exec core.DBExecutor
}

func (b base) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return b.exec
}

// selectAll runs q and scans all rows into dest, a pointer to a slice of structs.
func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// selectIn expands the IN (?) clauses of q before running selectAll.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return err
	}
	return selectAll(ctx, exec, dest, sqlx.Rebind(sqlx.DOLLAR, q), args...)
}

// namedExec runs a query using named parameters (:name) bound from arg.
func namedExec(ctx context.Context, exec core.DBExecutor, q string, arg interface{}) (sql.Result, error) {
	q, args, err := sqlx.Named(q, arg)
	if err != nil {
		return nil, err
	}
	return exec.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...)
}

func pgCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// trapNotFound maps "no rows" and malformed IDs to notFound.
func trapNotFound(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows || pgCode(err) == pgInvalidText {
		return notFound
	}
	return errors.Wrap(err, msg)
}
