// Package http implements the HTTP transport layer of the room key backup
// server.
//
// It exposes the /_matrix/client/v3/room_keys routes, the request handlers
// behind them, and the middleware chain. Cross-cutting concerns such as
// authentication, request tracing, access logging and response compression
// are handled in this package before requests are delegated to the service
// layer. All error responses use the Matrix wire format, a JSON object with
// "errcode" and "error" fields.
package http
