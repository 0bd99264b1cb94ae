package media

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHead  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}
	jpegHead = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10}
	pdfHead  = []byte("%PDF-1.7 stub")
)

func TestSniffPhotoDetectsByMagicBytes(t *testing.T) {
	mime, body, err := SniffPhoto(bytes.NewReader(pngHead))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	// The replayed stream must contain the sniffed head.
	replayed, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, pngHead, replayed)
}

func TestSniffPhotoIgnoresDeclaredContentType(t *testing.T) {
	// An HTML payload is rejected no matter what the client claimed.
	_, _, err := SniffPhoto(strings.NewReader("<html><script>alert(1)</script></html>"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSniffPhotoRejectsPDF(t *testing.T) {
	_, _, err := SniffPhoto(bytes.NewReader(pdfHead))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSniffDocumentAcceptsPDFAndImages(t *testing.T) {
	mime, _, err := SniffDocument(bytes.NewReader(pdfHead))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)

	mime, _, err = SniffDocument(bytes.NewReader(jpegHead))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
}

func TestSniffReplaysStreamsLongerThanTheHead(t *testing.T) {
	payload := append(append([]byte{}, jpegHead...), bytes.Repeat([]byte{0xab}, 2048)...)

	_, body, err := SniffPhoto(bytes.NewReader(payload))
	require.NoError(t, err)

	replayed, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, replayed)
}

func TestSniffRejectsEmptyStream(t *testing.T) {
	_, _, err := SniffPhoto(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
