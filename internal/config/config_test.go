package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TICKET_NUMBER_PREFIX", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "BRTS", cfg.Tickets.NumberPrefix)
	assert.Equal(t, StorageDriverFS, cfg.Storage.Driver)
	assert.EqualValues(t, 10<<20, cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestValidateRejectsBadPrefixAndDriver(t *testing.T) {
	t.Setenv("TICKET_NUMBER_PREFIX", "brts-1")
	t.Setenv("STORAGE_DRIVER", "s3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TICKET_NUMBER_PREFIX")
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
}

func TestValidateMinioNeedsEndpoint(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMinio)
	t.Setenv("MINIO_ENDPOINT", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINIO_ENDPOINT")
}
