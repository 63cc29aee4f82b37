// Package store holds the in-memory authoritative state for conversations.
//
// # Overview
//
// The store is pure data manipulation: create, append, patch, delete, list.
// It never performs I/O and never reaches out to the remote service. The
// session controller is its only writer; everything else observes snapshots.
//
// # Snapshots
//
// Every read (Get, List, the value returned by Create) is a deep copy.
// Mutating a returned Conversation never affects the store, which is what
// makes it safe to hand snapshots to a UI goroutine while sends reconcile
// in the background.
//
// # Not-found semantics
//
// AppendMessage and UpdateMessage return ErrNotFound when their target
// conversation no longer exists. That is the legitimate race of a user
// deleting a conversation while its send is in flight, so callers absorb
// it silently rather than surfacing an error.
package store
