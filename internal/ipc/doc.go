// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// Every interactive tracking command, manual recheck, history query, status
// report and log tail travels as a request/response DTO pair registered under
// the "MangaWatch" service name. User mistakes come back inside the response
// message; only storage and transport failures surface as RPC errors.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
