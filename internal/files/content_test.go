package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeType(t *testing.T) {
	typer := NewContentTyper()

	tests := []struct {
		path string
		want string
	}{
		{"index.html", "text/html"},
		{"INDEX.HTM", "text/html"},
		{"app.js", "application/javascript"},
		{"icon.svg", "image/svg+xml"},
		{"font.woff2", "font/woff2"},
		{"archive.unknownext", DefaultMimeType},
		{"Makefile", DefaultMimeType},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, typer.MimeType(tt.path))
		})
	}
}

func TestIsText(t *testing.T) {
	assert.True(t, IsText("text/html"))
	assert.True(t, IsText("text/plain"))
	assert.True(t, IsText("application/json"))
	assert.True(t, IsText("image/svg+xml"))
	assert.False(t, IsText("image/png"))
	assert.False(t, IsText(DefaultMimeType))
}

func TestDetectCharset(t *testing.T) {
	tests := []struct {
		name        string
		head        []byte
		wantName    string
		wantSniffed bool
	}{
		{"utf-8 bom", []byte{0xEF, 0xBB, 0xBF, '<'}, "utf-8", true},
		{"utf-16le bom", []byte{0xFF, 0xFE, '<', 0x00}, "utf-16le", true},
		{"utf-16be bom", []byte{0xFE, 0xFF, 0x00, '<'}, "utf-16be", true},
		{"utf-32le bom", []byte{0xFF, 0xFE, 0x00, 0x00}, "utf-32le", true},
		{"utf-32be bom", []byte{0x00, 0x00, 0xFE, 0xFF}, "utf-32be", true},
		{"no bom", []byte("<htm"), DefaultCharset.Name, false},
		{"short", []byte{0xFF}, DefaultCharset.Name, false},
		{"empty", nil, DefaultCharset.Name, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := DetectCharset(tt.head)
			require.NotNil(t, cs)
			assert.Equal(t, tt.wantName, cs.Name)
			assert.Equal(t, tt.wantSniffed, cs.Sniffed)
			assert.NotNil(t, cs.Encoding)
		})
	}
}

func TestTypeOf(t *testing.T) {
	dir := t.TempDir()
	typer := NewContentTyper()

	utf16 := filepath.Join(dir, "wide.html")
	require.NoError(t, os.WriteFile(utf16, []byte{0xFF, 0xFE, '<', 0x00, 'p', 0x00, '>', 0x00}, 0o644))

	png := filepath.Join(dir, "pixel.png")
	require.NoError(t, os.WriteFile(png, []byte{0xFF, 0xFE, 0x00, 0x00}, 0o644))

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	mimeType, cs, err := typer.TypeOf(utf16)
	require.NoError(t, err)
	assert.Equal(t, "text/html", mimeType)
	require.NotNil(t, cs)
	assert.Equal(t, "utf-16le", cs.Name)

	mimeType, cs, err = typer.TypeOf(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Nil(t, cs)

	mimeType, cs, err = typer.TypeOf(empty)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mimeType)
	assert.Equal(t, DefaultCharset, cs)

	_, _, err = typer.TypeOf(filepath.Join(dir, "missing.css"))
	assert.Error(t, err)
}
