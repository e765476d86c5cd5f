// Package types holds the records exchanged between the store, the prompt
// generator, the HTTP API and the CLI: projects, endpoints and the JSON-valued
// fields of an endpoint (roles, preferences and response definitions).
package types
