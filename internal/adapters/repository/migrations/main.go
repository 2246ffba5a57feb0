// Package migrations holds the board schema migrations.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry consumed by the migrate command.
var Migrations = migrate.NewMigrations()
