// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts the request lifecycle operations and
// the live feed to HTTP and websocket clients, translating service errors
// into status codes with safe messages.
package api
