package transport

import (
	"encoding/base64"
	"os"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/haggisnet/haggisnet/internal/core/observability/log"
	"github.com/haggisnet/haggisnet/internal/core/optical"
)

// Source says which input path delivered an inbound image. All paths
// converge on the same decode.
type Source uint8

const (
	SourceDrop Source = iota
	SourceFile
	SourceClipboard
	SourceCapture
)

func (s Source) String() string {
	switch s {
	case SourceDrop:
		return "drop"
	case SourceFile:
		return "file"
	case SourceClipboard:
		return "clipboard"
	case SourceCapture:
		return "capture"
	default:
		return "unknown"
	}
}

// Frame is one rendered visual code ready for display or manual transfer.
type Frame struct {
	// Pixels is the RGBA buffer, Side*Side*4 bytes.
	Pixels []byte
	// PNG is the same code as a portable image.
	PNG []byte
	// Side is the square dimension in pixels.
	Side int
	// Seq increases with every render; a caller holding an older frame
	// knows it has been superseded.
	Seq uint64
}

// ConfirmFunc asks the user to confirm a suspected duplicate transfer.
type ConfirmFunc func() bool

// Optical is the manual transfer path: it renders outbound snapshots as
// visual codes and ingests inbound images from any of the manual input
// paths. A decode failure is non-fatal and leaves all state unchanged.
type Optical struct {
	codec   optical.Codec
	side    int
	confirm ConfirmFunc
	logger  log.Log

	mu           sync.Mutex
	renderSeq    uint64
	lastRendered uint64 // xxhash of the last rendered snapshot
	hasRendered  bool
}

// NewOptical builds the optical adapter. confirm is consulted before a
// suspected duplicate is accepted; a nil confirm declines duplicates.
func NewOptical(codec optical.Codec, side int, confirm ConfirmFunc, logger log.Log) *Optical {
	if side <= 0 {
		side = optical.DefaultFrameSide
	}
	return &Optical{
		codec:   codec,
		side:    side,
		confirm: confirm,
		logger:  logger.With(log.String("channel", "optical")),
	}
}

// Render encodes a snapshot for display. A frame rendered after this one
// supersedes it; callers must discard stale frames by Seq.
func (o *Optical) Render(snapshot []byte) (*Frame, error) {
	pixels, err := o.codec.EncodePixels(snapshot, o.side)
	if err != nil {
		return nil, err
	}
	png, err := o.codec.EncodePNG(snapshot, o.side)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.renderSeq++
	o.lastRendered = xxhash.Sum64(snapshot)
	o.hasRendered = true
	seq := o.renderSeq
	o.mu.Unlock()

	o.logger.Debug("Rendered visual code",
		log.Uint64("seq", seq),
		log.Int("snapshot_bytes", len(snapshot)))
	return &Frame{Pixels: pixels, PNG: png, Side: o.side, Seq: seq}, nil
}

// Ingest decodes an inbound image into snapshot bytes. When the decoded
// snapshot is identical to the one last rendered locally, the user most
// likely re-ingested their own code, so confirmation is required before
// it is treated as a genuine inbound update.
func (o *Optical) Ingest(image []byte, source Source) ([]byte, error) {
	snapshot, err := o.codec.Decode(image)
	if err != nil {
		o.logger.Warn("Inbound image did not decode",
			log.String("source", source.String()),
			log.Error(err))
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}

	o.mu.Lock()
	duplicate := o.hasRendered && xxhash.Sum64(snapshot) == o.lastRendered
	o.mu.Unlock()

	if duplicate {
		o.logger.Warn("Inbound code matches the one just displayed",
			log.String("source", source.String()))
		if o.confirm == nil || !o.confirm() {
			return nil, ErrDuplicateDeclined
		}
	}

	o.logger.Info("Inbound snapshot via optical transfer",
		log.String("source", source.String()),
		log.Int("snapshot_bytes", len(snapshot)))
	return snapshot, nil
}

// IngestFile reads and decodes an image selected via the file picker or
// dropped as a file.
func (o *Optical) IngestFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	return o.Ingest(data, SourceFile)
}

// IngestDataURI decodes an image dragged in as a data: URI.
func (o *Optical) IngestDataURI(uri string) ([]byte, error) {
	_, payload, found := strings.Cut(uri, ";base64,")
	if !found || !strings.HasPrefix(uri, "data:image/") {
		return nil, errors.Wrap(ErrDecodeFailed, "unsupported image uri")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(ErrDecodeFailed, "bad image uri payload")
	}
	return o.Ingest(data, SourceDrop)
}
