// Package api holds the OpenAPI contract of the HTTP surface.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
