// Package demo holds the state of one visitor's "InfraScan Test" panel.
//
// A Workspace owns two image slots (past and current), the lifecycle of the
// single analysis request built from them, and the last result. All mutation
// goes through Workspace methods; readers get an immutable Snapshot.
//
// # Request lifecycle
//
// The request state is an explicit machine driven by Transition:
//
//	Idle|Succeeded|Failed --start-->      InFlight
//	InFlight              --succeed-->    Succeeded
//	InFlight              --fail-->       Failed
//	InFlight              --invalidate--> Idle
//
// Failed accepts a new start exactly like Idle. Every request is stamped with
// a generation; re-selecting a slot mid-flight or closing the workspace bumps
// the generation and cancels the request, so a late response is dropped.
//
// # Previews
//
// Selecting a file revokes the slot's previous preview before creating the
// new one. Close revokes whatever previews remain.
package demo
