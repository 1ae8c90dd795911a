// Package protocol owns the relay wire object codec.
//
// Ownership boundary:
// - typed object encoding/decoding (chr, int, lon, str, buf, ptr, tim,
//   htb, hda, inf, inl, arr)
// - message bodies (identifier string + object stream)
//
// The frame envelope lives in the frame subpackage; structured-record
// construction lives in the hdata subpackage. This package carries no
// domain semantics.
package protocol
