package blob

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("%PDF-1.4 resume")
	key := "attachments/2026/10/19/abc_att_1_cv.pdf"
	require.NoError(t, store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), PutOptions{ContentType: "application/pdf"}))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = store.Get(ctx, "attachments/missing.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "a/../../outside", "/etc/passwd"} {
		err := store.Put(context.Background(), key, strings.NewReader("x"), 1, PutOptions{})
		assert.Error(t, err, key)
	}
}

func TestLocalStoreShortWrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "a/b.txt", strings.NewReader("abc"), 10, PutOptions{})
	require.Error(t, err)
	_, err = store.Get(context.Background(), "a/b.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "resume.pdf", expected: "resume"},
		{name: "spaces and dashes", input: "John  Doe - CV.docx", expected: "John_Doe_CV"},
		{name: "special chars", input: "cv(final)&v2!.pdf", expected: "cvfinalv2"},
		{name: "empty", input: "", expected: "file"},
		{name: "only symbols", input: "***.txt", expected: "file"},
		{name: "long", input: strings.Repeat("a", 80) + ".txt", expected: strings.Repeat("a", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanName(tt.input))
		})
	}
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC)
	key := ObjectKey(now, "tok", 501, "My CV.pdf", ".pdf")
	assert.Equal(t, "attachments/2026/03/07/tok_att_501_My_CV.pdf", key)

	random := NewObjectKey(now, 501, "My CV.pdf", ".pdf")
	assert.Regexp(t, regexp.MustCompile(`^attachments/2026/03/07/[0-9a-f-]{36}_att_501_My_CV\.pdf$`), random)
	assert.NotEqual(t, random, NewObjectKey(now, 501, "My CV.pdf", ".pdf"))
}

func TestExtension(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	tests := []struct {
		name     string
		filename string
		mime     string
		data     []byte
		expected string
	}{
		{name: "from filename", filename: "CV.PDF", mime: "text/plain", expected: ".pdf"},
		{name: "from mime", filename: "resume", mime: "application/pdf", expected: ".pdf"},
		{name: "mime with params", filename: "resume", mime: "application/pdf; qs=0.9", expected: ".pdf"},
		{name: "from content", filename: "resume", data: pdf, expected: ".pdf"},
		{name: "fallback", filename: "resume", data: []byte{0x00, 0x01, 0x02, 0x03}, expected: ".bin"},
		{name: "nothing at all", expected: ".bin"},
		{name: "bogus extension", filename: "weird.name with space", mime: "application/pdf", expected: ".pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Extension(tt.filename, tt.mime, tt.data))
		})
	}
}

func TestDetectMime(t *testing.T) {
	assert.Equal(t, "application/msword", DetectMime(" application/msword ", nil))
	assert.Equal(t, "application/pdf", DetectMime("", []byte("%PDF-1.7\n")))
	assert.Equal(t, "application/octet-stream", DetectMime("", []byte{0x00, 0x01, 0x02}))
}

func TestEscapeMetadata(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "normal path", input: "path/to/file.txt", expected: "path/to/file.txt"},
		{name: "windows path", input: "path\\to\\file.txt", expected: "path/to/file.txt"},
		{name: "path with spaces", input: "path/to/my file.txt", expected: "path/to/my+file.txt"},
		{name: "path with special chars", input: "path/to/file&name+test.txt", expected: "path/to/fileandname+test.txt"},
		{name: "path with double slashes", input: "path//to//file.txt", expected: "path/to/file.txt"},
		{name: "path with dot segments", input: "path/./to/../file.txt", expected: "path/./to/../file.txt"},
		{name: "empty path", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := escapeMetadata(tt.input); result != tt.expected {
				t.Errorf("escapeMetadata(%q) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}
