package types

import "errors"

// Entry and terminal lookup errors.
var (
	// ErrNoEntryNode is returned when no node has kind "flow" and action "start".
	ErrNoEntryNode = errors.New("no entry node")

	// ErrMultipleEntryNodes is returned when more than one node has kind "flow"
	// and action "start".
	ErrMultipleEntryNodes = errors.New("multiple entry nodes")

	// ErrNoTerminalNode is returned when no node has kind "flow" and action "end".
	ErrNoTerminalNode = errors.New("no terminal node")
)
