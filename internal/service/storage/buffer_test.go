package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potholewatch/internal/config"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
)

func newBuffer(t *testing.T, limit int) (*BufferService, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "images")
	cfg := &config.Config{ImageDirectory: dir, ImageBufferLimit: limit, ImageBufferFlushInterval: 1}
	return NewBufferService(cfg, logger.NewTestLogger(t.TempDir(), io.Discard)), dir
}

func TestBuffer_LimitPerVehicle(t *testing.T) {
	buf, _ := newBuffer(t, 2)

	_, ok := buf.Add([]byte("a"), "DASHCAM-001", model.SeverityHigh)
	assert.True(t, ok)
	_, ok = buf.Add([]byte("b"), "DASHCAM-001", model.SeverityHigh)
	assert.True(t, ok)
	_, ok = buf.Add([]byte("c"), "DASHCAM-001", model.SeverityHigh)
	assert.False(t, ok, "third snapshot for the same vehicle should be dropped")
	_, ok = buf.Add([]byte("d"), "BUS-7", model.SeverityLow)
	assert.True(t, ok)

	assert.Equal(t, 3, buf.Pending())
}

func TestBuffer_ReadBeforeAndAfterFlush(t *testing.T) {
	buf, dir := newBuffer(t, 10)

	name, ok := buf.Add([]byte("jpeg-bytes"), "DASH/CAM 1", model.SeverityMedium)
	require.True(t, ok)
	assert.NotContains(t, name, "/")

	data, err := buf.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	assert.Equal(t, 1, buf.Flush())
	assert.Zero(t, buf.Pending())

	onDisk, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(onDisk))

	data, err = buf.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	_, ok = buf.Add([]byte("again"), "DASH/CAM 1", model.SeverityMedium)
	assert.True(t, ok, "flush resets the per-vehicle counter")
}

func TestBuffer_RejectsTraversal(t *testing.T) {
	buf, _ := newBuffer(t, 10)

	for _, name := range []string{"../secret.jpg", "/etc/passwd", "a/b.jpg", "", "x.png", "..jpg"} {
		_, err := buf.Read(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestSnapshotURL(t *testing.T) {
	assert.Equal(t, "/api/snapshots/view?image=a+b.jpg", SnapshotURL("a b.jpg"))
}
