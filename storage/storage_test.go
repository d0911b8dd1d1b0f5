package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafemanager/config"
)

func TestLocalDiskPutAndDelete(t *testing.T) {
	root := t.TempDir()
	d := NewLocal(root, "/uploads/")
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "logos/a.png", strings.NewReader("png"), "image/png"))
	data, err := os.ReadFile(filepath.Join(root, "logos", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "/uploads/logos/a.png", d.URL("logos/a.png"))

	require.NoError(t, d.Delete(ctx, "logos/a.png"))
	require.NoError(t, d.Delete(ctx, "logos/a.png"), "deleting a missing file is not an error")
}

func TestLocalDiskStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	d := NewLocal(root, "/uploads")

	require.NoError(t, d.Put(context.Background(), "../../escape.txt", strings.NewReader("x"), ""))
	_, err := os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)
}

func TestNewRejectsUnknownDisk(t *testing.T) {
	_, err := New(context.Background(), &config.Config{StorageDisk: "ftp"})
	assert.Error(t, err)
}

func TestS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{})
	assert.Error(t, err)
}

func TestS3URL(t *testing.T) {
	d, err := NewS3(context.Background(), S3Options{Bucket: "menus", Region: "eu-west-1", Key: "k", Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, "https://menus.s3.eu-west-1.amazonaws.com/logos/x.png", d.URL("/logos/x.png"))
}
