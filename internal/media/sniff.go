// Package media sniffs uploaded file content and decides whether it is
// acceptable for storage. The client-supplied Content-Type header is
// never trusted.
package media

import (
	"bytes"
	"errors"
	"io"
)

var ErrUnsupportedType = errors.New("unsupported media type")

// Photos attached to household profiles. The photo bucket is public, so
// only plain raster images are allowed.
var photoMIMEs = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Case documents additionally allow PDFs.
var documentMIMEs = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"application/pdf": {},
}

// SniffPhoto reads the head of r, detects the content type from magic
// bytes and returns the detected MIME plus a reader replaying the full
// stream. Returns ErrUnsupportedType for anything that is not a raster
// image.
func SniffPhoto(r io.Reader) (string, io.Reader, error) {
	return sniff(r, photoMIMEs)
}

// SniffDocument is SniffPhoto with PDFs also allowed.
func SniffDocument(r io.Reader) (string, io.Reader, error) {
	return sniff(r, documentMIMEs)
}

func sniff(r io.Reader, allowed map[string]struct{}) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]

	mime := detect(head)
	if _, ok := allowed[mime]; !ok {
		return "", nil, ErrUnsupportedType
	}
	return mime, io.MultiReader(bytes.NewReader(head), r), nil
}

func detect(head []byte) string {
	switch {
	case isJPEG(head):
		return "image/jpeg"
	case isPNG(head):
		return "image/png"
	case isWEBP(head):
		return "image/webp"
	case isPDF(head):
		return "application/pdf"
	default:
		return ""
	}
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

func isPDF(head []byte) bool {
	return len(head) >= 5 && bytes.Equal(head[:5], []byte("%PDF-"))
}
