package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type fakePDF struct {
	text  string
	err   error
	panic bool
}

func (f *fakePDF) Convert(_ context.Context, _ string) (string, error) {
	if f.panic {
		panic("corrupt xref table")
	}
	return f.text, f.err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func writeZip(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("inner.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("inside the archive"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func sqliteHeader() []byte {
	data := make([]byte, 512)
	copy(data, "SQLite format 3\x00")
	return data
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		want Kind
	}{
		{"pdf", writeFile(t, dir, "paper.pdf", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")), KindPDF},
		{"pdf without extension", writeFile(t, dir, "paper", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")), KindPDF},
		{"python", writeFile(t, dir, "main.py", []byte("def main():\n    pass\n")), KindSourceCode},
		{"json by content", writeFile(t, dir, "payload", []byte(`{"a": 1, "b": [1, 2]}`)), KindJSON},
		{"plain text", writeFile(t, dir, "notes.txt", []byte("just some notes\n")), KindText},
		{"sqlite", writeFile(t, dir, "app.db", sqliteHeader()), KindSQLite},
		{"zip", writeZip(t, dir, "bundle.zip"), KindArchive},
		{"binary", writeFile(t, dir, "blob.bin", []byte{0x8a, 0x00, 0x13, 0x77, 0xc4, 0x00, 0x9e, 0x02}), KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, mime, err := Classify(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, kind, "mime %s", mime)
		})
	}
}

func TestClassify_MissingFile(t *testing.T) {
	_, _, err := Classify(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestExtract_Text(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "notes.txt", []byte("hello world\n"))

	text, err := New(nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", text)
}

func TestExtract_RepairsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "latin1.txt", []byte("caf\xe9 au lait"))

	text, err := New(nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Contains(t, text, "caf")
	assert.Contains(t, text, "au lait")
}

func TestExtract_PDFUsesConverter(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "paper.pdf", []byte("%PDF-1.4\n"))

	text, err := New(&fakePDF{text: "# Title\n\nBody"}).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody", text)
}

func TestExtract_UnsupportedTypes(t *testing.T) {
	dir := t.TempDir()
	ex := New(&fakePDF{})

	tests := []struct {
		name    string
		path    string
		message string
	}{
		{"sqlite", writeFile(t, dir, "app.db", sqliteHeader()), "sqlite Databases are not supported yet"},
		{"archive", writeZip(t, dir, "bundle.zip"), "expanded before extraction"},
		{"unknown", writeFile(t, dir, "blob.bin", []byte{0x8a, 0x00, 0x13, 0x77, 0xc4, 0x00, 0x9e, 0x02}), "Unknown file type"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text, err := ex.Extract(context.Background(), tc.path)
			assert.Empty(t, text)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUnsupportedContent)

			var uce *domain.UnsupportedContentError
			require.True(t, errors.As(err, &uce))
			assert.Contains(t, uce.Reason, tc.message)
			assert.Equal(t, tc.path, uce.Path)
		})
	}
}

func TestExtract_PDFWithoutConverterIsUnsupported(t *testing.T) {
	p := writeFile(t, t.TempDir(), "paper.pdf", []byte("%PDF-1.4\n"))

	_, err := New(nil).Extract(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrUnsupportedContent)
}

func TestExtractBatch_IsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	good1 := writeFile(t, dir, "a.txt", []byte("alpha"))
	bad := writeFile(t, dir, "broken.pdf", []byte("%PDF-1.4\n"))
	good2 := writeFile(t, dir, "b.py", []byte("print('beta')\n"))

	tests := []struct {
		name      string
		converter *fakePDF
	}{
		{"converter error", &fakePDF{err: errors.New("bad trailer")}},
		{"converter panic", &fakePDF{panic: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results := New(tc.converter).ExtractBatch(context.Background(), []string{good1, bad, good2})
			require.Len(t, results, 3)

			assert.NoError(t, results[0].Err)
			assert.Equal(t, "alpha", results[0].Text)

			assert.ErrorIs(t, results[1].Err, domain.ErrExtractionFailed)
			assert.Empty(t, results[1].Text)
			assert.Equal(t, bad, results[1].Path)

			assert.NoError(t, results[2].Err)
			assert.Equal(t, "print('beta')\n", results[2].Text)
		})
	}
}

func TestExtractBatch_MissingFile(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "a.txt", []byte("alpha"))

	results := New(nil).ExtractBatch(context.Background(), []string{filepath.Join(dir, "gone.txt"), ok})
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, domain.ErrExtractionFailed)
	assert.NoError(t, results[1].Err)
}
