// Package framepool recycles planar 4:2:0 frame buffers for frame sources and
// fills them from decoded or rendered images.
package framepool

import (
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/user/timelapse/pkg/ports"
)

type planes struct {
	y, u, v []byte
}

// Pool hands out RawFrames of one fixed size whose Release returns the planes.
type Pool struct {
	width  int
	height int
	pool   sync.Pool
	rgba   *image.RGBA
	mu     sync.Mutex
}

// New creates a Pool for width×height frames. Odd dimensions are rounded down
// to even ones.
func New(width, height int) *Pool {
	width &^= 1
	height &^= 1
	p := &Pool{width: width, height: height}
	p.pool.New = func() any {
		return &planes{
			y: make([]byte, width*height),
			u: make([]byte, width*height/4),
			v: make([]byte, width*height/4),
		}
	}
	return p
}

// Size returns the frame dimensions.
func (p *Pool) Size() (int, int) {
	return p.width, p.height
}

// Get returns a frame with uninitialized planes.
func (p *Pool) Get(captured time.Time) ports.RawFrame {
	pl := p.pool.Get().(*planes)
	var once sync.Once
	return ports.RawFrame{
		Width:       p.width,
		Height:      p.height,
		Y:           pl.y,
		U:           pl.u,
		V:           pl.v,
		CaptureTime: captured,
		ReleaseFunc: func() {
			once.Do(func() { p.pool.Put(pl) })
		},
	}
}

// FromImage returns a frame holding img scaled to the pool size.
func (p *Pool) FromImage(img image.Image, captured time.Time) ports.RawFrame {
	frame := p.Get(captured)

	p.mu.Lock()
	defer p.mu.Unlock()

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds() != image.Rect(0, 0, p.width, p.height) {
		if p.rgba == nil {
			p.rgba = image.NewRGBA(image.Rect(0, 0, p.width, p.height))
		}
		if img.Bounds().Dx() == p.width && img.Bounds().Dy() == p.height {
			draw.Copy(p.rgba, image.Point{}, img, img.Bounds(), draw.Src, nil)
		} else {
			draw.ApproxBiLinear.Scale(p.rgba, p.rgba.Bounds(), img, img.Bounds(), draw.Src, nil)
		}
		rgba = p.rgba
	}

	Fill(frame, rgba)
	return frame
}

// Fill writes the BT.601 full-range YCbCr form of img into the frame's planes.
// Chroma is the average of each 2×2 block. img must match the frame size.
func Fill(frame ports.RawFrame, img *image.RGBA) {
	w, h := frame.Width, frame.Height
	cw := w / 2

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			yy, _, _ := color.RGBToYCbCr(row[i], row[i+1], row[i+2])
			frame.Y[y*w+x] = yy
		}
	}

	for cy := 0; cy < h/2; cy++ {
		top := img.Pix[2*cy*img.Stride:]
		bottom := img.Pix[(2*cy+1)*img.Stride:]
		for cx := 0; cx < cw; cx++ {
			i := cx * 8
			r := (int(top[i]) + int(top[i+4]) + int(bottom[i]) + int(bottom[i+4]) + 2) / 4
			g := (int(top[i+1]) + int(top[i+5]) + int(bottom[i+1]) + int(bottom[i+5]) + 2) / 4
			b := (int(top[i+2]) + int(top[i+6]) + int(bottom[i+2]) + int(bottom[i+6]) + 2) / 4
			_, cb, cr := color.RGBToYCbCr(uint8(r), uint8(g), uint8(b))
			frame.U[cy*cw+cx] = cb
			frame.V[cy*cw+cx] = cr
		}
	}
}
