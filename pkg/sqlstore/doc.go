// Package sqlstore stores feature states in a relational table through
// database/sql, so it runs on any driver: SQLite, MySQL, PostgreSQL and others.
//
// # Usage
//
//	db, err := sql.Open("sqlite", "file:features.db")
//	if err != nil {
//		return err
//	}
//
//	source, err := sqlstore.NewSource(ctx, db,
//		sqlstore.WithTableName("FEATURES"),
//		sqlstore.WithSchemaCreation(true),
//	)
//
// Drivers binding parameters as $1 need WithPlaceholder(sqlstore.Dollar).
// PostgreSQL deployments that prefer JSONB parameters should use package pg.
package sqlstore
