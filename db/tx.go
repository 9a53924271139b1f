package db

import (
	"context"
	"database/sql"
)

// Tx is a sql transaction whose callbacks run only once the outcome is known.
// Stores use commit callbacks to publish events for data that is durably written.
type Tx struct {
	*sql.Tx
	onRollback []func()
	onCommit   []func()
}

func NewTx(ctx context.Context, db DBer) (*Tx, error) {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: sqlTx}, nil
}

func (tx *Tx) AddRollbackCallback(cb func()) {
	tx.onRollback = append(tx.onRollback, cb)
}

func (tx *Tx) AddCommitCallback(cb func()) {
	tx.onCommit = append(tx.onCommit, cb)
}

func (tx *Tx) Commit() error {
	if err := tx.Tx.Commit(); err != nil {
		return err
	}
	for _, cb := range tx.onCommit {
		cb()
	}
	return nil
}

func (tx *Tx) Rollback() error {
	if err := tx.Tx.Rollback(); err != nil {
		return err
	}
	for _, cb := range tx.onRollback {
		cb()
	}
	return nil
}
