// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories with the storage package.
//
// Importing this package makes the following storage kinds available:
//
//   - "postgres" (pgtarget/internal/storage/postgres)
//   - "sqlite"   (pgtarget/internal/storage/sqlite)
//   - "mysql"    (pgtarget/internal/storage/mysql)
//   - "mssql"    (pgtarget/internal/storage/mssql)
//
// Typical usage (in cmd/pgtarget):
//
//	import _ "pgtarget/internal/storage/all" // enable all built-in backends
//
//	repo, err := storage.New(ctx, storage.Config{Kind: t.StorageKind(), DSN: dsn})
//
// A binary that supports only a subset of backends can import the backend
// packages it needs directly instead of this package.
package all

import (
	_ "pgtarget/internal/storage/mssql"
	_ "pgtarget/internal/storage/mysql"
	_ "pgtarget/internal/storage/postgres"
	_ "pgtarget/internal/storage/sqlite"
)
