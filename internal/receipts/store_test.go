package receipts

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

func newTestStore(t *testing.T, max int64) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "receipts"), max)
	require.NoError(t, s.Init())
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func upload(name, ct, body string) Upload {
	return Upload{Filename: name, ContentType: ct, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestValidate(t *testing.T) {
	s := newTestStore(t, 10)

	tests := []struct {
		name string
		up   Upload
		ok   bool
	}{
		{"jpeg", upload("a.jpg", "image/jpeg", "x"), true},
		{"png with params", upload("a.png", "image/png; charset=binary", "x"), true},
		{"gif", upload("a.gif", "image/gif", "x"), true},
		{"pdf", upload("a.pdf", "application/pdf", "x"), true},
		{"text", upload("a.txt", "text/plain", "x"), false},
		{"exe disguised", upload("a.jpg", "application/octet-stream", "x"), false},
		{"too large", upload("a.pdf", "application/pdf", strings.Repeat("x", 11)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.up)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
		})
	}
}

func TestSaveAndOpen(t *testing.T) {
	s := newTestStore(t, DefaultMaxBytes)

	rc, err := s.Save(upload("Lunch Receipt.PNG", "image/png", "png-bytes"))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^1700000000000-[0-9a-f-]{36}\.png$`), rc.Filename)
	assert.Equal(t, "image/png", rc.ContentType)
	assert.Equal(t, filepath.Join(s.Dir(), rc.Filename), rc.Path)

	f, ct, err := s.Open(rc.Filename)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", ct)
}

func TestSaveNamesNeverCollide(t *testing.T) {
	s := newTestStore(t, DefaultMaxBytes)

	a, err := s.Save(upload("a.pdf", "application/pdf", "1"))
	require.NoError(t, err)
	b, err := s.Save(upload("a.pdf", "application/pdf", "2"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Filename, b.Filename)
}

func TestSaveRejectsUnderstatedSize(t *testing.T) {
	s := newTestStore(t, 4)

	u := upload("a.pdf", "application/pdf", "too many bytes")
	u.Size = 1
	_, err := s.Save(u)
	require.Error(t, err)
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveFallsBackToTypeExtension(t *testing.T) {
	s := newTestStore(t, DefaultMaxBytes)
	rc, err := s.Save(upload("scan", "application/pdf", "%PDF"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rc.Filename, ".pdf"))
}

func TestOpenMissing(t *testing.T) {
	s := newTestStore(t, DefaultMaxBytes)

	for _, name := range []string{"nope.png", "", "..", "../../etc/passwd"} {
		_, _, err := s.Open(name)
		require.Error(t, err, name)
		assert.Equal(t, core.KindReceiptNotFound, core.KindOf(err), name)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, DefaultMaxBytes)
	rc, err := s.Save(upload("a.gif", "image/gif", "gif"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(rc.Filename))
	_, err = os.Stat(rc.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Remove(rc.Filename))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "passwd", Sanitize("../../etc/passwd"))
	assert.Equal(t, "x.png", Sanitize(`..\..\x.png`))
	assert.Equal(t, "x.png", Sanitize("x.png"))
	assert.Equal(t, "", Sanitize(""))
	assert.Equal(t, "", Sanitize("../"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor("a.JPEG"))
	assert.Equal(t, "application/pdf", ContentTypeFor("a.pdf"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("a.bin"))
}
