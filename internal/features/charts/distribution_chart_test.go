package charts

import (
	"bytes"
	"image/png"
	"path/filepath"
	"testing"

	"holders-api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDistributionProducesPNG(t *testing.T) {
	var buf bytes.Buffer
	err := RenderDistribution(&buf, "Holders", store.Distribution{Whales: 3, Dolphins: 10, Fish: 40, Shrimp: 200})
	require.NoError(t, err)

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, chartWidth, img.Bounds().Dx())
	assert.Equal(t, chartHeight, img.Bounds().Dy())
}

func TestSaveDistributionChartEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "dist.png")
	require.NoError(t, SaveDistributionChart(path, "Empty", store.Distribution{}))
	assert.FileExists(t, path)
}
