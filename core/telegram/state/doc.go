// Package state provides the FSM/session manager backing the bot's
// conversation flows. Sessions carry typed per-flow payloads instead of a
// free-form temp map, so each flow owns a concrete struct.
package state
