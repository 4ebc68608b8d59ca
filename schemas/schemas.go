// Package schemas embeds the JSON schemas used to validate auditor replies.
package schemas

import _ "embed"

//go:embed auditor_response.schema.json
var AuditorResponseSchemaJSON string
