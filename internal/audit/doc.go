// Package audit relays session lifecycle events (login, renewal, denial, logout) to a
// caller-supplied sink on a background goroutine.
//
// A nil *Dispatcher is valid and drops everything, so components hold one without
// checking whether auditing is enabled. Events never carry token values.
package audit
