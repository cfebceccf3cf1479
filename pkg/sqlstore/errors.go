package sqlstore

import "errors"

var (
	ErrInvalidTableName = errors.New("sqlstore: invalid table name")
	ErrCreateSchema     = errors.New("sqlstore: failed to create schema")
)
