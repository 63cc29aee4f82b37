// Package session is the conversation orchestration controller.
//
// # Overview
//
// The controller sits between the UI shell and the remote service. It owns
// the only transient session state in the system — the active conversation
// id and the id of the conversation with an outstanding send — and it is
// the sole writer of the conversation store. User intents (send, switch,
// delete, new chat) enter here; reconciled state comes out as store
// snapshots plus broadcast events.
//
// # Send protocol
//
// SendMessage validates first (trimmed non-empty, bounded length), creates
// a conversation implicitly when none is active, and rejects with ErrBusy
// while another send is outstanding. The optimistic user message and the
// streaming placeholder are appended in one store operation so observers
// never see one without the other. When the call settles, the placeholder
// is finalized in place exactly once; if the conversation was deleted in
// the meantime the result is dropped silently, because the user already
// navigated away.
//
// There is no hard cancellation. Switching or deleting conversations never
// aborts an in-flight request; reconciliation simply checks whether its
// target still exists.
//
// # Observation
//
// Subscribe returns a buffered event channel. Events say what changed, not
// what the new state is — consumers re-read snapshots, which keeps the
// controller free of aliasing hazards.
package session
