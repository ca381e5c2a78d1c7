// Package migrations holds the SQL schema for each supported record store.
package migrations

import "embed"

// FS contains postgres/*.sql and sqlite/*.sql in golang-migrate naming.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
