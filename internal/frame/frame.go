// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// BytesPerPixel is the size of one BGRA pixel in a Frame buffer.
const BytesPerPixel = 4

// maxAlignedSide bounds a single buffer axis; larger requests fail with ErrAllocation.
const maxAlignedSide = 16384

// ErrAllocation is returned when a frame buffer cannot be obtained.
var ErrAllocation = errors.New("frame allocation failed")

// Frame is a BGRA pixel buffer with a logical (visible) size and an
// aligned (capacity) size. The decoder may pad lines, so the aligned
// size is always >= the logical size on both axes.
//
// A Frame has exactly one owner at a time: the pool, a producer or the
// compositor. Ownership moves with the pointer.
type Frame struct {
	width         int
	height        int
	alignedWidth  int
	alignedHeight int
	data          []byte

	pool   *Pool // set once by the allocating pool
	pooled bool  // guarded by pool.mu
}

func newFrame(alignedWidth, alignedHeight int) (*Frame, error) {
	if alignedWidth <= 0 || alignedHeight <= 0 ||
		alignedWidth > maxAlignedSide || alignedHeight > maxAlignedSide {
		return nil, fmt.Errorf("%w: aligned size %dx%d", ErrAllocation, alignedWidth, alignedHeight)
	}
	return &Frame{
		alignedWidth:  alignedWidth,
		alignedHeight: alignedHeight,
		data:          make([]byte, alignedWidth*alignedHeight*BytesPerPixel),
	}, nil
}

// SetSize sets the logical size. It fails if the size exceeds the
// aligned size or is negative.
func (f *Frame) SetSize(width, height int) error {
	if width < 0 || height < 0 || width > f.alignedWidth || height > f.alignedHeight {
		return fmt.Errorf("frame: logical size %dx%d does not fit aligned %dx%d",
			width, height, f.alignedWidth, f.alignedHeight)
	}
	f.width = width
	f.height = height
	return nil
}

// Sizes returns the logical and aligned dimensions.
func (f *Frame) Sizes() (width, height, alignedWidth, alignedHeight int) {
	return f.width, f.height, f.alignedWidth, f.alignedHeight
}

func (f *Frame) Width() int  { return f.width }
func (f *Frame) Height() int { return f.height }

// Data exposes the raw BGRA buffer for the decoder to fill.
func (f *Frame) Data() []byte { return f.data }

// Stride is the number of bytes per aligned line.
func (f *Frame) Stride() int { return f.alignedWidth * BytesPerPixel }

// DrawRectangle fills a rectangle with a solid color. It is clipped to
// the aligned buffer, not the logical size, so it may paint line padding.
func (f *Frame) DrawRectangle(left, top, width, height int, c color.Color) {
	if left < 0 {
		width += left
		left = 0
	}
	if top < 0 {
		height += top
		top = 0
	}
	if width <= 0 || height <= 0 {
		return
	}
	maxWidth := f.alignedWidth - left
	maxHeight := f.alignedHeight - top
	if maxWidth <= 0 || maxHeight <= 0 {
		return
	}
	width = min(width, maxWidth)
	height = min(height, maxHeight)

	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	px := [BytesPerPixel]byte{rgba.B, rgba.G, rgba.R, rgba.A}
	stride := f.Stride()
	for y := top; y < top+height; y++ {
		row := f.data[y*stride+left*BytesPerPixel : y*stride+(left+width)*BytesPerPixel]
		for x := 0; x < len(row); x += BytesPerPixel {
			copy(row[x:x+BytesPerPixel], px[:])
		}
	}
}

// Upload copies the logical area into an RGBA image, swapping the BGRA
// channel order. dst is reused when its bounds already match.
func (f *Frame) Upload(dst *image.RGBA) *image.RGBA {
	bounds := image.Rect(0, 0, f.width, f.height)
	if dst == nil || dst.Rect != bounds {
		dst = image.NewRGBA(bounds)
	}
	stride := f.Stride()
	for y := 0; y < f.height; y++ {
		src := f.data[y*stride : y*stride+f.width*BytesPerPixel]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+f.width*4]
		for x := 0; x < len(src); x += BytesPerPixel {
			out[x+0] = src[x+2]
			out[x+1] = src[x+1]
			out[x+2] = src[x+0]
			out[x+3] = src[x+3]
		}
	}
	return dst
}
