package appfs

import "embed"

// FS holds the migrations, templates and static assets shipped with the binary.
//go:embed migrations/*.sql all:templates assets
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	WebTemplatesDir   = "templates/web"
	AssetsDir         = "assets"
)
