// Package migrations embeds the settings schema. Import it for its side
// effect of registering the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
}
