// Package migrations applies the embedded schema files to both
// backing stores on startup. Every migration is idempotent, so a
// restart re-applies them harmlessly.
package migrations

import "embed"

// PostgresFS holds the image and measurement schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the light curve schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
