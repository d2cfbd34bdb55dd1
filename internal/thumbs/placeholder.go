package thumbs

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
)

// generatePlaceholderPNG renders a deterministic gradient tile for model
// formats that have no rasterized preview yet. The palette is seeded from the
// object name so the same asset always gets the same placeholder.
func generatePlaceholderPNG(seed string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	top, bottom := gradientColors(seed)

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		t := float64(y) / float64(size-1)
		row := lerpColor(top, bottom, t)
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, row)
		}
	}

	// Subtle highlight band along the top edge.
	highlight := size / 32
	if highlight < 2 {
		highlight = 2
	}
	for y := 0; y < highlight; y++ {
		fade := 1.0 - float64(y)/float64(highlight)
		for x := 0; x < size; x++ {
			c := img.RGBAAt(x, y)
			c.R = brighten(c.R, fade)
			c.G = brighten(c.G, fade)
			c.B = brighten(c.B, fade)
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gradientColors(seed string) (color.RGBA, color.RGBA) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	sum := h.Sum32()

	top := color.RGBA{
		R: uint8(32 + (sum & 0x7F)),
		G: uint8(24 + ((sum >> 7) & 0x7F)),
		B: uint8(48 + ((sum >> 14) & 0x7F)),
		A: 255,
	}
	bottom := color.RGBA{
		R: uint8(24 + ((sum >> 5) & 0x7F)),
		G: uint8(48 + ((sum >> 12) & 0x7F)),
		B: uint8(32 + ((sum >> 19) & 0x7F)),
		A: 255,
	}
	return top, bottom
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: 255,
	}
}

func brighten(c uint8, fade float64) uint8 {
	v := float64(c) + 40*fade
	if v > 255 {
		v = 255
	}
	return uint8(v)
}
