// Package kvrdb implements the connection protocol engine for a small
// Redis-wire-compatible server: per-connection buffered I/O, the
// RESP/inline-telnet parser, the single-inflight command dispatcher, and
// the RESP reply encoder.
//
// The embedded key-value store, the command catalogue, and process
// startup live in sibling packages (internal/store, internal/handlers,
// cmd/kvrdb-server) and are treated here only through the Handler and
// Connection types.
package kvrdb
