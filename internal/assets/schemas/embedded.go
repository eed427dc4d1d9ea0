// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time so validation works regardless of the
// working directory or installation location.
package schemasassets

import _ "embed"

// JobManifestSchema is the embedded job-manifest JSON schema.
//
// This allows manifest validation to work in installed binaries and library
// consumers without requiring the schema file to be present on disk.
//
//go:embed job-manifest.schema.json
var JobManifestSchema []byte
