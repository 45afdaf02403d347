// Package migrations embeds the goose SQL migrations for the trips store so
// they can be applied by cmd/ingest at startup and by integration tests.
package migrations

import "embed"

// FS holds every *.sql migration, in goose's numbered order.
//
//go:embed *.sql
var FS embed.FS
