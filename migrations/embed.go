// Package migrations embeds the SQL migration set applied to cold storage
// (snapshots, cases, folds) via bun's migrate.Migrations.Discover.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
