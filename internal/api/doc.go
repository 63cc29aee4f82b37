// Package api is the stateless HTTP client for the remote assistant service.
//
// # Contract
//
// All operations are single-shot: there are no retries, no connection state,
// and no caching. Errors come back in exactly one of two shapes: a transport
// error wrapped with context, or a *RemoteError carrying the HTTP status and
// the service's {detail} string. Unparsable error bodies are normalized to a
// generic detail so callers can always display something.
//
// Timeouts live here (on the underlying http.Client), not in the session
// controller; the controller only ever sees success or failure.
package api
