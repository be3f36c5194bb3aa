// Package telegram defines the boundary to the messaging platform.
//
// The low-level MTProto client is an external collaborator: this package
// specifies the Client interface the rest of the server programs against,
// the tagged Entity variant that replaces the platform's heterogeneous peer
// types, the wire-facing Message record, and the deep-link generator.
//
// Concrete clients are supplied through a Connector at process start; the
// telegramtest subpackage provides an in-memory implementation used by
// tests and by --test-mode.
package telegram
