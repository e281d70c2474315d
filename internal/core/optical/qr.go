package optical

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"

	_ "image/jpeg" // photographs of a displayed code
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

var _ Codec = (*QRCodec)(nil)

// Light module color of the rendered code, matched to the app background.
var lightColor = color.RGBA{R: 217, G: 217, B: 217, A: 255}

// QRCodec carries snapshots inside QR codes. Payloads are base64-wrapped so
// arbitrary snapshot bytes survive the QR text segment on the way back out.
type QRCodec struct {
	// Level is the error correction level.
	Level qrcode.RecoveryLevel
}

// NewQRCodec returns a codec with medium error correction, which suits
// screen-to-camera transfer.
func NewQRCodec() *QRCodec {
	return &QRCodec{Level: qrcode.Medium}
}

func (c *QRCodec) newCode(payload []byte) (*qrcode.QRCode, error) {
	wrapped := base64.RawStdEncoding.EncodeToString(payload)
	code, err := qrcode.New(wrapped, c.Level)
	if err != nil {
		return nil, errors.Wrap(ErrPayloadTooLarge, err.Error())
	}
	code.ForegroundColor = color.Black
	code.BackgroundColor = lightColor
	return code, nil
}

// EncodePNG renders the payload as a side×side PNG image.
func (c *QRCodec) EncodePNG(payload []byte, side int) ([]byte, error) {
	code, err := c.newCode(payload)
	if err != nil {
		return nil, err
	}
	out, err := code.PNG(side)
	if err != nil {
		return nil, errors.Wrap(ErrEncodeFailed, err.Error())
	}
	return out, nil
}

// EncodePixels renders the payload as a side×side RGBA pixel buffer.
func (c *QRCodec) EncodePixels(payload []byte, side int) ([]byte, error) {
	code, err := c.newCode(payload)
	if err != nil {
		return nil, err
	}
	rgba := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(rgba, rgba.Bounds(), code.Image(side), image.Point{}, draw.Src)
	return rgba.Pix, nil
}

// Decode extracts the payload from an encoded image.
func (c *QRCodec) Decode(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, "not an image")
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, "no code in image")
	}

	payload, err := base64.RawStdEncoding.DecodeString(result.GetText())
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, "code carries no snapshot")
	}
	return payload, nil
}
