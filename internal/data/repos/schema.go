package repos

import _ "embed"

//go:embed schema.sql
var schemaSQL string

// Schema returns the idempotent DDL applied by `screener migrate`
func Schema() string {
	return schemaSQL
}
