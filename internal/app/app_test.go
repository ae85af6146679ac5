package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/capture"
	"github.com/ayusman/sign2text/internal/classifier"
	"github.com/ayusman/sign2text/internal/detector"
	"github.com/ayusman/sign2text/internal/gesture"
	"github.com/ayusman/sign2text/internal/log"
	"github.com/ayusman/sign2text/internal/speech"
	"github.com/ayusman/sign2text/internal/store"
)

// helloRecognizer always predicts "hello" with high confidence.
func helloRecognizer(t *testing.T) *classifier.Recognizer {
	t.Helper()
	weights := [][]float64{
		make([]float64, detector.NumFeatures),
		make([]float64, detector.NumFeatures),
	}
	m, err := classifier.NewDenseModel(weights, []float64{10, 0})
	if err != nil {
		t.Fatal(err)
	}
	rec := classifier.NewRecognizer(0)
	rec.SetModel(m, []string{"hello", "bye"})
	return rec
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return &m
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func TestProcess_AnnouncesOnce(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands(detector.OpenPalmLandmarks())
	sink := speech.NewMock()
	s := newTestStore(t)

	a := New(Config{
		Detector:     det,
		Recognizer:   helloRecognizer(t),
		Sink:         sink,
		Store:        s,
		PollInterval: 10 * time.Millisecond,
		Logger:       log.Discard(),
	})
	var rec recorder
	a.Subscribe(rec.add)
	a.Start(context.Background())

	sess := a.Sessions().Create()
	frame := newFrame(t)

	first := a.Process(sess, frame)
	defer first.Frame.Close()
	if first.Prediction.Label != "hello" {
		t.Fatalf("label = %q, want hello", first.Prediction.Label)
	}
	if first.Announcement == nil {
		t.Fatal("first detection should be announced")
	}
	if first.Frame.Empty() {
		t.Error("annotated frame should not be empty")
	}

	second := a.Process(sess, frame)
	defer second.Frame.Close()
	if second.Announcement != nil {
		t.Error("repeat within the cooldown should be suppressed")
	}

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := sink.Texts(); len(got) != 1 || got[0] != "This is hello" {
		t.Errorf("spoken = %v", got)
	}

	stored, err := s.Announcements().GetByID(first.Announcement.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != store.StatusDelivered || stored.SessionID != sess.ID() {
		t.Errorf("stored record %+v", stored)
	}

	types := rec.types()
	if len(types) != 2 || types[0] != EventQueued || types[1] != EventDelivered {
		t.Errorf("events = %v, want [queued delivered]", types)
	}

	if snap := sess.Snapshot(); snap.LastGesture != "hello" {
		t.Errorf("last gesture = %q", snap.LastGesture)
	}
}

func TestProcess_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		rec  func(t *testing.T) *classifier.Recognizer
		hand bool
		want string
	}{
		{"no model", func(*testing.T) *classifier.Recognizer { return classifier.NewRecognizer(0) }, true, gesture.LabelNoModel},
		{"no hand", helloRecognizer, false, gesture.LabelNoHand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := detector.NewMockDetector()
			if tt.hand {
				det.SetHands(detector.OpenPalmLandmarks())
			}
			sink := speech.NewMock()
			a := New(Config{Detector: det, Recognizer: tt.rec(t), Sink: sink, Logger: log.Discard()})
			a.Start(context.Background())

			res := a.Process(a.Sessions().Create(), newFrame(t))
			res.Frame.Close()
			if res.Prediction.Label != tt.want {
				t.Errorf("label = %q, want %q", res.Prediction.Label, tt.want)
			}
			if res.Announcement != nil {
				t.Error("sentinels must not be announced")
			}

			a.Stop(context.Background())
			if sink.CallCount() != 0 {
				t.Errorf("sink called %d times", sink.CallCount())
			}
		})
	}
}

func TestProcess_DetectorErrorIsNoHand(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetError(errors.New("helper crashed"))
	a := New(Config{Detector: det, Recognizer: helloRecognizer(t), Sink: speech.NewMock(), Logger: log.Discard()})

	res := a.Process(a.Sessions().Create(), newFrame(t))
	defer res.Frame.Close()
	if res.Prediction.Label != gesture.LabelNoHand {
		t.Errorf("label = %q, want %q", res.Prediction.Label, gesture.LabelNoHand)
	}
	a.Stop(context.Background())
}

func TestStop_WaitsForInFlightDelivery(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands(detector.OpenPalmLandmarks())

	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	// Ignores cancellation, like a native synthesizer call.
	sink := speech.SinkFunc(func(context.Context, string, announce.Language) error {
		close(entered)
		<-release
		finished.Store(true)
		return nil
	})

	a := New(Config{Detector: det, Recognizer: helloRecognizer(t), Sink: sink, PollInterval: 10 * time.Millisecond, Logger: log.Discard()})
	a.Start(context.Background())
	res := a.Process(a.Sessions().Create(), newFrame(t))
	res.Frame.Close()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("announcement never reached the sink")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- a.Stop(ctx) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the sink was still delivering")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-stopped:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Stop() = %v, want DeadlineExceeded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the delivery finished")
	}
	if !finished.Load() {
		t.Error("Stop returned before the delivery finished")
	}
}

func TestProcess_FailedDeliveryIsRecorded(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands(detector.OpenPalmLandmarks())
	sink := speech.NewMock()
	sink.DeliverFunc = func(context.Context, string, announce.Language) error {
		return errors.New("no audio device")
	}
	s := newTestStore(t)

	a := New(Config{Detector: det, Recognizer: helloRecognizer(t), Sink: sink, Store: s, Logger: log.Discard()})
	a.Start(context.Background())
	res := a.Process(a.Sessions().Create(), newFrame(t))
	res.Frame.Close()
	a.Stop(context.Background())

	stored, err := s.Announcements().GetByID(res.Announcement.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != store.StatusFailed || stored.Error != "no audio device" {
		t.Errorf("stored record %+v", stored)
	}
}

func TestSetLanguage_Persists(t *testing.T) {
	s := newTestStore(t)

	a := New(Config{Store: s, Sink: speech.NewMock(), Logger: log.Discard()})
	sess := a.Sessions().Create()
	a.SetLanguage(sess, announce.Hindi)
	if sess.Language() != announce.Hindi {
		t.Fatal("session language not switched")
	}
	a.Stop(context.Background())

	b := New(Config{Store: s, Sink: speech.NewMock(), Logger: log.Discard()})
	defer b.Stop(context.Background())
	if got := b.Sessions().DefaultLanguage(); got != announce.Hindi {
		t.Errorf("restored default language = %v, want hindi", got)
	}
}

func TestHandleCommand(t *testing.T) {
	a := New(Config{Sink: speech.NewMock(), Logger: log.Discard()})
	defer a.Stop(context.Background())
	sess := a.Sessions().Create()

	tests := []struct {
		cmd      string
		wantQuit bool
		wantLang announce.Language
	}{
		{"hi", false, announce.Hindi},
		{"  EN ", false, announce.English},
		{"hindi", false, announce.Hindi},
		{"french", false, announce.Hindi},
		{"", false, announce.Hindi},
		{"q", true, announce.Hindi},
		{"l", false, announce.English},
		{"L", false, announce.Hindi},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			if quit := a.handleCommand(sess, tt.cmd); quit != tt.wantQuit {
				t.Errorf("quit = %v, want %v", quit, tt.wantQuit)
			}
			if sess.Language() != tt.wantLang {
				t.Errorf("language = %v, want %v", sess.Language(), tt.wantLang)
			}
		})
	}
}

func TestRunConsole_StopsWhenFramesRunOut(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands(detector.OpenPalmLandmarks())
	sink := speech.NewMock()
	a := New(Config{Detector: det, Recognizer: helloRecognizer(t), Sink: sink, Logger: log.Discard()})
	a.Start(context.Background())

	cam := capture.NewMockCamera([]*gocv.Mat{newFrame(t), newFrame(t), newFrame(t)}, false)
	if err := cam.Open(); err != nil {
		t.Fatal(err)
	}

	shown := 0
	err := a.RunConsole(context.Background(), a.Sessions().Create(), cam, ConsoleOptions{
		Interval: 5 * time.Millisecond,
		Show:     func(*gocv.Mat) bool { shown++; return true },
	})
	if !errors.Is(err, capture.ErrNoMoreFrames) {
		t.Fatalf("RunConsole() error = %v, want ErrNoMoreFrames", err)
	}
	if shown != 3 {
		t.Errorf("shown %d frames, want 3", shown)
	}

	a.Stop(context.Background())
	if sink.CallCount() != 1 {
		t.Errorf("spoken %d times, want 1", sink.CallCount())
	}
}

func TestRunConsole_Quit(t *testing.T) {
	a := New(Config{Sink: speech.NewMock(), Logger: log.Discard()})
	defer a.Stop(context.Background())

	cam := capture.NewMockCamera([]*gocv.Mat{newFrame(t)}, true)
	cam.Open()

	done := make(chan error, 1)
	go func() {
		done <- a.RunConsole(context.Background(), a.Sessions().Create(), cam, ConsoleOptions{
			Interval: 5 * time.Millisecond,
			Input:    strings.NewReader("q\n"),
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunConsole() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunConsole did not quit")
	}
}

func TestRunConsole_ContextCancel(t *testing.T) {
	a := New(Config{Sink: speech.NewMock(), Logger: log.Discard()})
	defer a.Stop(context.Background())

	cam := capture.NewMockCamera([]*gocv.Mat{newFrame(t)}, true)
	cam.Open()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.RunConsole(ctx, a.Sessions().Create(), cam, ConsoleOptions{Interval: 5 * time.Millisecond}); err != nil {
		t.Errorf("RunConsole() error = %v", err)
	}
}

func TestSweep(t *testing.T) {
	s := newTestStore(t)
	a := New(Config{Store: s, Sink: speech.NewMock(), Logger: log.Discard()})
	defer a.Stop(context.Background())

	now := time.Now()
	idle := a.Sessions().Create()
	idle.Touch(now.Add(-time.Hour))
	active := a.Sessions().Create()
	active.Touch(now)

	s.Announcements().Create(&store.Announcement{ID: "old", Label: "A", Text: "This is A", Language: "english", CreatedAt: now.Add(-48 * time.Hour)})
	s.Announcements().Create(&store.Announcement{ID: "new", Label: "A", Text: "This is A", Language: "english", CreatedAt: now})

	a.sweep(now, JanitorOptions{SessionIdle: 10 * time.Minute, Retention: 24 * time.Hour})

	if _, ok := a.Sessions().Get(idle.ID()); ok {
		t.Error("idle session should be pruned")
	}
	if _, ok := a.Sessions().Get(active.ID()); !ok {
		t.Error("active session should be kept")
	}
	if _, err := s.Announcements().GetByID("old"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old announcement should be expired, got %v", err)
	}
	if _, err := s.Announcements().GetByID("new"); err != nil {
		t.Errorf("new announcement should be kept: %v", err)
	}
}
