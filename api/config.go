// Package api provides an HTTP API server for searching the contextual
// vector database and asking research questions.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// TopK is the number of results returned when a request does not set
	// top_k.
	TopK int

	// DisableMCP leaves /mcp unmounted.
	DisableMCP bool
}
