package charts

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/store"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

const (
	chartWidth  = 1200
	chartHeight = 700

	chartAreaLeft   = 120.0
	chartAreaRight  = 1120.0
	chartAreaTop    = 140.0
	chartAreaBottom = 600.0

	barWidth = 160.0

	titleFontSize = 36.0
	labelFontSize = 24.0

	titleY          = 70.0
	barValueOffsetY = 14.0
	labelOffsetY    = 40.0
	gridLinesCount  = 4
)

var barColors = []color.RGBA{
	{66, 135, 245, 255}, // whales
	{52, 199, 89, 255},  // dolphins
	{255, 196, 0, 255},  // fish
	{255, 99, 132, 255}, // shrimp
}

var fontPaths = []string{
	"etc/fonts/Inter-Regular.ttf",
	"./etc/fonts/Inter-Regular.ttf",
	"~/Library/Fonts/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/inter/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
}

// RenderDistribution draws the holder distribution as a bar chart and writes a PNG to w.
func RenderDistribution(w io.Writer, title string, dist store.Distribution) error {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.Black)
	dc.Clear()

	fontPath := findFont()
	setFont(dc, fontPath, titleFontSize)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(title, chartWidth/2, titleY, 0.5, 0.5)

	labels := []string{"Whales >1%", "Dolphins >0.1%", "Fish >0.01%", "Shrimp"}
	values := []int{dist.Whales, dist.Dolphins, dist.Fish, dist.Shrimp}

	maxValue := 1
	for _, v := range values {
		maxValue = max(maxValue, v)
	}
	height := chartAreaBottom - chartAreaTop

	dc.SetColor(color.RGBA{60, 60, 60, 255})
	dc.SetLineWidth(1)
	for i := 0; i <= gridLinesCount; i++ {
		y := chartAreaBottom - height*float64(i)/gridLinesCount
		dc.DrawLine(chartAreaLeft, y, chartAreaRight, y)
		dc.Stroke()
	}

	slot := (chartAreaRight - chartAreaLeft) / float64(len(values))
	setFont(dc, fontPath, labelFontSize)
	for i, v := range values {
		x := chartAreaLeft + slot*float64(i) + (slot-barWidth)/2
		barHeight := height * float64(v) / float64(maxValue)

		dc.SetColor(barColors[i])
		dc.DrawRectangle(x, chartAreaBottom-barHeight, barWidth, barHeight)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawStringAnchored(fmt.Sprintf("%d", v), x+barWidth/2, chartAreaBottom-barHeight-barValueOffsetY, 0.5, 0)
		dc.DrawStringAnchored(labels[i], x+barWidth/2, chartAreaBottom+labelOffsetY, 0.5, 0)
	}

	return dc.EncodePNG(w)
}

// SaveDistributionChart renders into path, creating parent directories.
func SaveDistributionChart(path, title string, dist store.Distribution) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := RenderDistribution(f, title, dist); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	logging.LogInfo("Distribution chart saved", zap.String("file", path))
	return nil
}

func setFont(dc *gg.Context, path string, size float64) {
	if path == "" {
		return
	}
	if err := dc.LoadFontFace(path, size); err != nil {
		logging.LogDebug("Failed to load font", zap.String("path", path), zap.Error(err))
	}
}

func findFont() string {
	for _, p := range fontPaths {
		p = expandPath(p)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	logging.LogDebug("No TTF font found, using built-in face", zap.Int("paths_checked", len(fontPaths)))
	return ""
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
