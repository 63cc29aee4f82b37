// Package docs mirrors the remote ingestion pipeline's document registry.
//
// The mirror is weakly consistent: Refresh replaces it wholesale from the
// service, and readers get whatever the last refresh saw. After an upload,
// AwaitProcessing polls the list until every new document settles into
// processed or error, bounded by a configurable window. Files are validated
// client-side (media type or extension) before a single byte goes out.
package docs
