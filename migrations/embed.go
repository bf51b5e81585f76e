// Package migrations embeds the SQL schema into the hotelcore binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
