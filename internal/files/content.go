package files

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// DefaultMimeType is used for extensions missing from the table.
const DefaultMimeType = "application/octet-stream"

// mimeTypes is the static extension table. Lookups are case-insensitive.
var mimeTypes = map[string]string{
	".html":        "text/html",
	".htm":         "text/html",
	".css":         "text/css",
	".js":          "application/javascript",
	".mjs":         "application/javascript",
	".json":        "application/json",
	".map":         "application/json",
	".webmanifest": "application/manifest+json",
	".xml":         "application/xml",
	".xhtml":       "application/xhtml+xml",
	".txt":         "text/plain",
	".md":          "text/markdown",
	".csv":         "text/csv",
	".svg":         "image/svg+xml",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".gif":         "image/gif",
	".webp":        "image/webp",
	".avif":        "image/avif",
	".ico":         "image/x-icon",
	".bmp":         "image/bmp",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".ttf":         "font/ttf",
	".otf":         "font/otf",
	".eot":         "application/vnd.ms-fontobject",
	".wasm":        "application/wasm",
	".pdf":         "application/pdf",
	".zip":         "application/zip",
	".gz":          "application/gzip",
	".tar":         "application/x-tar",
	".mp3":         "audio/mpeg",
	".wav":         "audio/wav",
	".ogg":         "audio/ogg",
	".mp4":         "video/mp4",
	".webm":        "video/webm",
}

// textualTypes lists non text/* types that still carry a charset.
var textualTypes = map[string]bool{
	"application/javascript":    true,
	"application/json":          true,
	"application/manifest+json": true,
	"application/xml":           true,
	"application/xhtml+xml":     true,
	"image/svg+xml":             true,
}

// IsHTML reports whether mimeType is rewritten by the reload injector.
func IsHTML(mimeType string) bool {
	return mimeType == "text/html"
}

// IsText reports whether mimeType carries a text encoding.
func IsText(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || textualTypes[mimeType]
}

// Charset is a detected text encoding.
type Charset struct {
	// Name is the IANA label used in the Content-Type charset parameter.
	Name string
	// Encoding decodes the raw file bytes, stripping any byte order mark,
	// and encodes them back, restoring it.
	Encoding encoding.Encoding
	// Sniffed is true when the charset came from a byte order mark rather
	// than the fallback.
	Sniffed bool
}

// DefaultCharset is assumed for text files without a byte order mark.
// ISO-8859-1 maps every byte to one rune, so it never fails to decode. HTML
// documents reported with it are re-examined for a declared charset before
// being rewritten.
var DefaultCharset = &Charset{Name: "iso-8859-1", Encoding: charmap.ISO8859_1}

// UTF8 is the charset of bodies generated by the server itself.
var UTF8 = &Charset{Name: "utf-8", Encoding: unicode.UTF8, Sniffed: true}

type bom struct {
	mark    []byte
	charset *Charset
}

// Longer marks come first: the UTF-32LE mark starts with the UTF-16LE one.
var byteOrderMarks = []bom{
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, &Charset{Name: "utf-32le", Encoding: utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM), Sniffed: true}},
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, &Charset{Name: "utf-32be", Encoding: utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM), Sniffed: true}},
	{[]byte{0xEF, 0xBB, 0xBF}, &Charset{Name: "utf-8", Encoding: unicode.UTF8BOM, Sniffed: true}},
	{[]byte{0xFF, 0xFE}, &Charset{Name: "utf-16le", Encoding: unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), Sniffed: true}},
	{[]byte{0xFE, 0xFF}, &Charset{Name: "utf-16be", Encoding: unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), Sniffed: true}},
}

// ContentTyper determines MIME type and text encoding of files.
type ContentTyper struct {
	types map[string]string
}

// NewContentTyper creates a typer over the built-in extension table.
func NewContentTyper() *ContentTyper {
	return &ContentTyper{types: mimeTypes}
}

// MimeType returns the MIME type for path's extension.
func (c *ContentTyper) MimeType(path string) string {
	if t, ok := c.types[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return DefaultMimeType
}

// TypeOf returns the MIME type of path and, for textual types, its charset.
// The charset is sniffed through a separate file handle so the body stream
// opened later starts at byte zero.
func (c *ContentTyper) TypeOf(path string) (string, *Charset, error) {
	mimeType := c.MimeType(path)
	if !IsText(mimeType) {
		return mimeType, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open for charset detection: %w", err)
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("failed to read for charset detection: %w", err)
	}

	return mimeType, DetectCharset(head[:n]), nil
}

// DetectCharset inspects the leading bytes of a document for a byte order
// mark and falls back to DefaultCharset.
func DetectCharset(head []byte) *Charset {
	for _, b := range byteOrderMarks {
		if bytes.HasPrefix(head, b.mark) {
			return b.charset
		}
	}
	return DefaultCharset
}
