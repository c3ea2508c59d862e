// Package decoders provides implementations of the Decoder interface for the
// supported document formats. Each decoder is a pure function from bytes to
// text; the Registry selects one by declared format.
//
// Decoders are registered with the Registry at startup via RegisterDefaults.
package decoders
