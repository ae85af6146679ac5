package app

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/gesture"
	"github.com/ayusman/sign2text/internal/session"
)

// Overlay layout.
var (
	gestureOrigin  = image.Pt(10, 30)
	languageOrigin = image.Pt(10, 70)
	gestureColor   = color.RGBA{G: 255, A: 255}
	languageColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Result is the outcome of processing one frame.
type Result struct {
	// Frame is the annotated frame. The caller owns it and must Close it.
	Frame      gocv.Mat
	Prediction gesture.Prediction
	// Announcement is set when the frame produced a new announcement.
	Announcement *announce.Announcement
}

// Process runs one frame through the pipeline for sess:
//
//  1. detect the hand and draw its landmarks
//  2. classify the landmark vector
//  3. debounce the label against the session state
//  4. record and enqueue an accepted announcement
//  5. overlay the current gesture and language
//
// It never blocks on speech.
func (a *App) Process(sess *session.Session, frame *gocv.Mat) Result {
	det := a.provider.Detect(frame)

	pred, err := a.recognizer.Classify(det.Features())
	if err != nil {
		a.log.Debug("classification failed", "error", err)
	}

	res := Result{Frame: det.Annotated, Prediction: pred}
	if ann, ok := sess.Observe(pred); ok {
		a.announce(ann)
		res.Announcement = &ann
	}

	DrawOverlay(&res.Frame, pred.Label, sess.Language())
	return res
}

// DrawOverlay writes the gesture label and the language onto frame.
func DrawOverlay(frame *gocv.Mat, label string, lang announce.Language) {
	if frame == nil || frame.Empty() {
		return
	}
	gocv.PutText(frame, "Gesture: "+label, gestureOrigin, gocv.FontHersheySimplex, 1, gestureColor, 2)
	gocv.PutText(frame, "Language: "+lang.String(), languageOrigin, gocv.FontHersheySimplex, 0.7, languageColor, 2)
}
