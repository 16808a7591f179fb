// Package all wires every built-in source backend into the source factory.
//
// This package exists purely for side effects: importing it (even blank)
// runs the init functions of each concrete backend, which register their
// factories with the source package. Importing it makes the following
// source kinds available at runtime:
//
//   - "mysql"    (colsync/internal/source/mysql)
//   - "postgres" (colsync/internal/source/postgres)
//   - "mssql"    (colsync/internal/source/mssql)
//   - "sqlite"   (colsync/internal/source/sqlite)
//
// Binaries that need only a subset can blank-import individual backends
// instead.
package all

import (
	_ "colsync/internal/source/mssql"
	_ "colsync/internal/source/mysql"
	_ "colsync/internal/source/postgres"
	_ "colsync/internal/source/sqlite"
)
