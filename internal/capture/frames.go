package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	grey  = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	red   = color.RGBA{R: 255, A: 255}
)

func blankFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
}

// PlaceholderFrame is streamed while no camera is available. The caller must Close it.
func PlaceholderFrame() gocv.Mat {
	m := blankFrame()
	gocv.PutText(&m, "Camera Not Available", image.Pt(50, 200), gocv.FontHersheySimplex, 1.5, white, 2)
	gocv.PutText(&m, "Please check camera connection", image.Pt(50, 250), gocv.FontHersheySimplex, 0.8, grey, 1)
	gocv.PutText(&m, "Try refreshing the page", image.Pt(50, 300), gocv.FontHersheySimplex, 0.8, grey, 1)
	return m
}

// ErrorFrame is streamed after a processing failure. The caller must Close it.
func ErrorFrame(err error) gocv.Mat {
	m := blankFrame()
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	if len(msg) > 48 {
		msg = msg[:45] + "..."
	}
	gocv.PutText(&m, "Error: "+msg, image.Pt(50, 240), gocv.FontHersheySimplex, 1, red, 2)
	return m
}
