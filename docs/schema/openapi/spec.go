// Package openapi embeds the deckcore HTTP API description.
package openapi

import _ "embed"

//go:embed deckcore.yaml
var spec []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), spec...)
}
