// Command pgtarget is a Singer target: it reads SCHEMA, RECORD, BATCH and
// STATE messages on stdin, loads records into Postgres, SQLite, MySQL or SQL
// Server, and echoes STATE on stdout once the records before it are stored.
package main

import "os"

func main() {
	os.Exit(Execute())
}
