// Package optical converts game snapshots to and from the visual code used
// for manual, human-mediated transfer between devices.
package optical

import "errors"

// Codec errors
var (
	ErrEncodeFailed    = errors.New("snapshot does not fit a visual code")
	ErrDecodeFailed    = errors.New("image does not contain a valid visual code")
	ErrPayloadTooLarge = errors.New("snapshot payload too large")
)

// DefaultFrameSide is the side length of the square frame, in pixels.
const DefaultFrameSide = 296

// Codec renders a snapshot payload to a square visual code and reads it
// back. Implementations must round-trip any payload losslessly.
type Codec interface {
	// EncodePNG renders the payload as a side×side PNG image.
	EncodePNG(payload []byte, side int) ([]byte, error)

	// EncodePixels renders the payload as a side×side RGBA pixel buffer,
	// 4 bytes per pixel in row-major order, for direct display.
	EncodePixels(payload []byte, side int) ([]byte, error)

	// Decode extracts the payload from an encoded image (PNG, or a JPEG
	// photograph of a displayed code). Returns ErrDecodeFailed, possibly
	// wrapped, when no payload can be recovered.
	Decode(image []byte) ([]byte, error)
}
