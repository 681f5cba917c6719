// Package storage keeps attachment bytes outside the database. Metadata lives
// in ticket_attachments; a Backend only knows opaque keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("object not found")

// Backend stores and serves attachment blobs.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

const keyRoot = "ticket_attachments"

// MaxNameLength keeps "<uuid>-<name>" within a single 255 byte path segment
// and the name itself within the file_name column.
const MaxNameLength = 200

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewKey builds ticket_attachments/YYYY/MM/<uuid>-<name>. The uuid keeps
// repeated uploads of the same file name apart.
func NewKey(now time.Time, fileName string) string {
	return fmt.Sprintf("%s/%04d/%02d/%s-%s", keyRoot, now.Year(), int(now.Month()), uuid.NewString(), SanitizeName(fileName))
}

// SanitizeName strips directories and anything outside a conservative charset.
// Long names are cut to MaxNameLength, keeping the extension.
func SanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if len(base) > MaxNameLength {
		ext := filepath.Ext(base)
		if len(ext) > MaxNameLength/4 {
			ext = ""
		}
		base = strings.TrimRight(base[:MaxNameLength-len(ext)], "._") + ext
	}
	if base == "" {
		return "file"
	}
	return base
}

// New selects a backend from configuration.
func New(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case config.StorageDriverMinio:
		return NewMinio(ctx, cfg)
	case config.StorageDriverFS, "":
		return NewFilesystem(cfg.BasePath)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
