// Package protocol implements the wire surface shared with the lint server.
//
// The server is a separate process speaking JSON-RPC 2.0 over stdio with
// Content-Length framed messages. On top of the base protocol it uses a small
// dialect: standard document lifecycle notifications (textDocument/didOpen,
// textDocument/didClose), a configuration pull request
// (workspace/configuration) that the client answers, and lint-specific
// requests and notifications (lint/noConfig, lint/noLibrary, lint/openDoc,
// lint/probeFailed, lint/status).
//
// Transport handles both directions: outbound calls and notifications, and
// inbound responses, notifications, and requests. The session answers
// workspace/configuration and the lint/* requests, so the transport routes
// inbound requests to handlers and writes the reply back on the same
// connection.
package protocol
