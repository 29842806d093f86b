package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-eyedid/pkg/coord"
)

func testConfig() Config {
	return Config{
		Name: "primary", WidthPx: 1920, HeightPx: 1080, WidthMM: 527, HeightMM: 296,
		Window: "eyedid",
	}
}

func TestPrimary(t *testing.T) {
	p, _ := FromConfig(testConfig())
	info, err := Primary(p)
	require.NoError(t, err)
	assert.Equal(t, "primary", info.Name)

	_, err = Primary(Static{})
	assert.ErrorIs(t, err, ErrNoDisplay)
}

func TestCameraToDisplay(t *testing.T) {
	info := testConfig().Info()
	tr, err := info.CameraToDisplay()
	require.NoError(t, err)

	p := tr.Convert(coord.Pt(0, 0))
	assert.InDelta(t, 960, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)

	info.WidthMM = 0
	_, err = info.CameraToDisplay()
	assert.ErrorIs(t, err, coord.ErrInvalidRegion)
}

func TestPaddedWindowRect(t *testing.T) {
	_, w := FromConfig(testConfig())

	r, err := PaddedWindowRect(w, "eyedid", 30)
	require.NoError(t, err)
	assert.Equal(t, coord.R(30, 30, 1890, 1050), r)

	w.Set("small", coord.R(0, 0, 50, 50))
	_, err = PaddedWindowRect(w, "small", 30)
	assert.ErrorIs(t, err, coord.ErrInvalidRegion)

	_, err = PaddedWindowRect(w, "missing", 30)
	assert.ErrorIs(t, err, ErrUnknownWindow)
}

func TestConfigWindowRect(t *testing.T) {
	c := testConfig()
	c.WindowX, c.WindowY, c.WindowWidth, c.WindowHeight = 100, 50, 800, 600
	assert.Equal(t, coord.R(100, 50, 900, 650), c.WindowRect())
}
