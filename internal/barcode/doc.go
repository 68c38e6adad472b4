// Package barcode locates and decodes QR symbols in raster images.
//
// Detection and decoding are separate steps so callers can tell
// "no symbol found" apart from "symbol found but unreadable".
package barcode
