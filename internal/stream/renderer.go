package stream

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ChannelInfo identifies a simulated camera.
type ChannelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Port     int    `json:"port"`
}

// Renderer produces the raster for a channel at instant t.
type Renderer interface {
	Render(info ChannelInfo, t time.Time) *image.RGBA
}

// Layout of the test pattern at the reference size of 640x480; other sizes
// scale the orbit but keep the text, dot and border margins.
const (
	refWidth     = 640
	refHeight    = 480
	orbitX       = 200
	orbitY       = 100
	dotRadius    = 20
	borderInset  = 10
	borderWidth  = 2
	textLeft     = 50
	timestampFmt = "2006-01-02 15:04:05"
)

var (
	white  = color.RGBA{255, 255, 255, 255}
	green  = color.RGBA{0, 255, 0, 255}
	yellow = color.RGBA{255, 255, 0, 255}
)

// PatternRenderer draws the animated test card. It holds no per-frame state
// and is safe for concurrent use.
type PatternRenderer struct {
	Width  int
	Height int
}

// NewPatternRenderer returns a renderer for w x h frames; zero values fall
// back to 640x480.
func NewPatternRenderer(w, h int) *PatternRenderer {
	if w <= 0 {
		w = refWidth
	}
	if h <= 0 {
		h = refHeight
	}
	return &PatternRenderer{Width: w, Height: h}
}

// Render implements Renderer.
func (r *PatternRenderer) Render(info ChannelInfo, t time.Time) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	r.gradient(img)

	drawText(img, textLeft, 50, white, "Video Stream Test")
	drawText(img, textLeft, 100, white, fmt.Sprintf("Port: %d", info.Port))
	drawText(img, textLeft, 150, white, t.Format(timestampFmt))

	cx, cy := r.orbit(t)
	fillCircle(img, cx, cy, dotRadius, green)

	strokeRect(img, image.Rect(borderInset, borderInset, r.Width-borderInset, r.Height-borderInset), borderWidth, white)

	drawText(img, textLeft, 200, yellow, "Camera: "+info.Name)
	return img
}

// gradient fills row y with R=255-y/2, G=50, B=y/2.
func (r *PatternRenderer) gradient(img *image.RGBA) {
	for y := 0; y < r.Height; y++ {
		c := color.RGBA{clamp8(255 - y/2), 50, clamp8(y / 2), 255}
		row := img.Pix[y*img.Stride : y*img.Stride+r.Width*4]
		for x := 0; x < len(row); x += 4 {
			row[x], row[x+1], row[x+2], row[x+3] = c.R, c.G, c.B, c.A
		}
	}
}

// orbit places the dot on an ellipse around the centre; x follows sin and y
// follows cos of the wall clock in seconds.
func (r *PatternRenderer) orbit(t time.Time) (int, int) {
	s := float64(t.UnixNano()) / float64(time.Second)
	ax := float64(orbitX*r.Width) / refWidth
	ay := float64(orbitY*r.Height) / refHeight
	x := float64(r.Width)/2 + ax*math.Sin(s)
	y := float64(r.Height)/2 + ay*math.Cos(s)
	return int(x), int(y)
}

func clamp8(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

func drawText(img *image.RGBA, x, y int, c color.Color, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func fillCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	b := img.Bounds()
	r2 := radius * radius
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > r2 || !image.Pt(x, y).In(b) {
				continue
			}
			img.SetRGBA(x, y, c)
		}
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle, width int, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, src, image.Point{}, draw.Src)
	}
}
