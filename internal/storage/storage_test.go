package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyLayout(t *testing.T) {
	key := NewKey(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), "../../etc/crash report.log")
	assert.True(t, strings.HasPrefix(key, "ticket_attachments/2025/03/"), key)
	assert.True(t, strings.HasSuffix(key, "-crash_report.log"), key)
	assert.NotContains(t, key, "..")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "file", SanitizeName("..."))
	assert.Equal(t, "a_b.txt", SanitizeName(`C:\tmp\a b.txt`))
}

func TestSanitizeNameCapsLength(t *testing.T) {
	name := SanitizeName(strings.Repeat("x", 600) + ".pdf")
	assert.Len(t, name, MaxNameLength)
	assert.True(t, strings.HasSuffix(name, "xx.pdf"), name)

	name = SanitizeName("a." + strings.Repeat("y", 300))
	assert.Len(t, name, MaxNameLength)

	key := NewKey(time.Now(), strings.Repeat("z", 1000)+".log")
	segment := key[strings.LastIndex(key, "/")+1:]
	assert.LessOrEqual(t, len(segment), 255)
}

func TestFilesystemRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	key := "ticket_attachments/2025/01/x-notes.txt"
	require.NoError(t, fs.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain"))

	rc, err := fs.Open(ctx, key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(body))

	require.NoError(t, fs.Delete(ctx, key))
	_, err = fs.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, fs.Delete(ctx, key))
}

func TestFilesystemRejectsEscapingKeys(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	err = fs.Put(context.Background(), "../outside.txt", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}
