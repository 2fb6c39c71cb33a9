// Package render draws affirmation texts onto pastel PNG cards and keeps the
// results in an on-disk cache.
package render

import (
	"bytes"
	"crypto/md5" //nolint:gosec // used for a stable color index, not security
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/big"
	"os"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// lineSpacing is the gap between lines as a fraction of the line height.
const lineSpacing = 0.3

// Palette holds the pastel backgrounds. The index is derived from the text hash,
// so the same text always gets the same color.
var Palette = []color.RGBA{
	{R: 255, G: 239, B: 213, A: 255}, // peach
	{R: 230, G: 230, B: 250, A: 255}, // lavender
	{R: 240, G: 248, B: 255, A: 255}, // light blue
	{R: 255, G: 250, B: 240, A: 255}, // cream
	{R: 245, G: 255, B: 250, A: 255}, // mint
}

// TextColor is the color of the rendered text.
var TextColor = color.RGBA{R: 80, G: 80, B: 80, A: 255}

// Options configures the renderer canvas and font.
type Options struct {
	Width    int
	Height   int
	Margin   int
	FontSize float64
	// FontPath points to a TTF/OTF file; empty selects the bundled Go font.
	FontPath string
}

// Renderer renders text cards. It is safe for concurrent use.
type Renderer struct {
	opts Options
	font *opentype.Font
}

// NewRenderer parses the configured font, falling back to the Go regular font.
func NewRenderer(opts Options) (*Renderer, error) {
	data := goregular.TTF
	if opts.FontPath != "" {
		b, err := os.ReadFile(opts.FontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", opts.FontPath, err)
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	if opts.FontSize <= 0 {
		return nil, fmt.Errorf("invalid font size %v", opts.FontSize)
	}

	return &Renderer{opts: opts, font: f}, nil
}

// Background returns the palette color for text.
func Background(text string) color.RGBA {
	sum := md5.Sum([]byte(text)) //nolint:gosec // see import
	n := new(big.Int).SetBytes(sum[:])
	idx := new(big.Int).Mod(n, big.NewInt(int64(len(Palette)))).Int64()
	return Palette[idx]
}

// Render draws text centered on a pastel card and returns PNG bytes.
func (r *Renderer) Render(text string) ([]byte, error) {
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    r.opts.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, apperrors.NewRenderError("failed to create font face", err)
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, r.opts.Width, r.opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background(text)), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.NewUniform(TextColor), Face: face}
	measure := func(s string) int { return d.MeasureString(s).Ceil() }
	lines := Wrap(text, r.opts.Width-2*r.opts.Margin, measure)

	if len(lines) > 0 {
		metrics := face.Metrics()
		lineHeight := metrics.Height.Ceil()
		step := lineHeight + int(float64(lineHeight)*lineSpacing)
		total := step*(len(lines)-1) + lineHeight

		y := (r.opts.Height-total)/2 + metrics.Ascent.Ceil()
		for _, line := range lines {
			x := (r.opts.Width - measure(line)) / 2
			d.Dot = fixed.P(x, y)
			d.DrawString(line)
			y += step
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.NewRenderError("failed to encode png", err)
	}
	return buf.Bytes(), nil
}

// Wrap splits text into lines no wider than maxWidth according to measure.
// A single word wider than maxWidth is kept on its own line. Explicit line
// breaks in text start a new line.
func Wrap(text string, maxWidth int, measure func(string) int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current []string
		for _, word := range strings.Fields(paragraph) {
			candidate := strings.Join(append(current, word), " ")
			if len(current) == 0 || measure(candidate) <= maxWidth {
				current = append(current, word)
				continue
			}
			lines = append(lines, strings.Join(current, " "))
			current = []string{word}
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
	}
	return lines
}
