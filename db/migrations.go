// Package db embeds the schema migrations for each supported database.
package db

import "embed"

// Migrations holds the pg/ and sqlite/ migration folders
//
//go:embed pg/*.sql sqlite/*.sql
var Migrations embed.FS

// Dir returns the migration folder for a database/sql driver name
func Dir(driverName string) string {
	switch driverName {
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return "pg"
	}
}
