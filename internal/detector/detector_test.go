package detector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

func TestHandLandmarks_Features(t *testing.T) {
	t.Run("flattens in landmark order", func(t *testing.T) {
		var h HandLandmarks
		for i := range h.Points {
			h.Points[i] = Point3D{X: float64(i), Y: float64(i) + 0.1, Z: float64(i) + 0.2}
		}

		f := h.Features()
		if len(f) != NumFeatures {
			t.Fatalf("expected %d features, got %d", NumFeatures, len(f))
		}
		for i := 0; i < NumLandmarks; i++ {
			if f[i*3] != float64(i) || f[i*3+1] != float64(i)+0.1 || f[i*3+2] != float64(i)+0.2 {
				t.Errorf("landmark %d flattened as %v", i, f[i*3:i*3+3])
			}
		}
	})

	t.Run("nil hand has no features", func(t *testing.T) {
		var h *HandLandmarks
		if f := h.Features(); f != nil {
			t.Errorf("expected nil, got %v", f)
		}
		if f := (Detection{}).Features(); f != nil {
			t.Errorf("expected nil for empty detection, got %v", f)
		}
	})

	t.Run("round trips through FromFeatures", func(t *testing.T) {
		palm := OpenPalmLandmarks()
		back, ok := FromFeatures(palm.Features())
		if !ok {
			t.Fatal("FromFeatures rejected a valid vector")
		}
		if back.Points != palm.Points {
			t.Error("points changed after round trip")
		}
		if _, ok := FromFeatures(make([]float64, 10)); ok {
			t.Error("FromFeatures accepted a short vector")
		}
	})
}

func TestHandConnections(t *testing.T) {
	if len(HandConnections) != 21 {
		t.Errorf("expected 21 connections, got %d", len(HandConnections))
	}
	for _, c := range HandConnections {
		for _, i := range c {
			if i < 0 || i >= NumLandmarks {
				t.Errorf("connection %v references landmark out of range", c)
			}
		}
	}
}

func response(t *testing.T, hands ...HandLandmarks) string {
	t.Helper()
	type out struct {
		Points     []Point3D `json:"points"`
		Handedness string    `json:"handedness"`
		Score      float64   `json:"score"`
	}
	var body struct {
		Hands []out `json:"hands"`
	}
	for _, h := range hands {
		body.Hands = append(body.Hands, out{Points: h.Points[:], Handedness: h.Handedness, Score: h.Score})
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b) + "\n"
}

func TestExchange(t *testing.T) {
	t.Run("writes length prefixed frame", func(t *testing.T) {
		var w bytes.Buffer
		r := bufio.NewReader(strings.NewReader(response(t)))

		jpeg := []byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9}
		hands, err := exchange(&w, r, jpeg)
		if err != nil {
			t.Fatalf("exchange: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected no hands, got %d", len(hands))
		}

		written := w.Bytes()
		if n := binary.BigEndian.Uint32(written[:4]); n != uint32(len(jpeg)) {
			t.Errorf("length prefix = %d, want %d", n, len(jpeg))
		}
		if !bytes.Equal(written[4:], jpeg) {
			t.Error("frame bytes not written verbatim")
		}
	})

	t.Run("parses hands", func(t *testing.T) {
		palm := OpenPalmLandmarks()
		r := bufio.NewReader(strings.NewReader(response(t, palm)))

		hands, err := exchange(&bytes.Buffer{}, r, []byte{1})
		if err != nil {
			t.Fatalf("exchange: %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("expected 1 hand, got %d", len(hands))
		}
		if hands[0].Points != palm.Points || hands[0].Handedness != "Right" {
			t.Errorf("hand not decoded: %+v", hands[0])
		}
	})

	t.Run("skips incomplete hands", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader(`{"hands":[{"points":[{"x":1,"y":1,"z":0}]}]}` + "\n"))
		hands, err := exchange(&bytes.Buffer{}, r, []byte{1})
		if err != nil {
			t.Fatalf("exchange: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected incomplete hand to be dropped, got %d", len(hands))
		}
	})

	t.Run("service error", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader(`{"error":"decode failed"}` + "\n"))
		if _, err := exchange(&bytes.Buffer{}, r, []byte{1}); err == nil || !strings.Contains(err.Error(), "decode failed") {
			t.Errorf("expected service error, got %v", err)
		}
	})

	t.Run("malformed response", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader("not json\n"))
		if _, err := exchange(&bytes.Buffer{}, r, []byte{1}); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("closed stdout", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader(""))
		if _, err := exchange(&bytes.Buffer{}, r, []byte{1}); err == nil {
			t.Error("expected read error")
		}
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	_, err := NewMediaPipeDetector(DefaultConfig(), "/nonexistent/"+ScriptName, "")
	if !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestMediaPipeDetector_Args(t *testing.T) {
	d := &MediaPipeDetector{config: DefaultConfig(), script: "/opt/" + ScriptName}
	got := strings.Join(d.args(), " ")
	want := "/opt/" + ScriptName + " --max-hands 1 --min-detection 0.70 --min-tracking 0.50"
	if got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestMockDetector(t *testing.T) {
	mock := NewMockDetector()
	frame := gocv.NewMat()
	defer frame.Close()

	hands, err := mock.Detect(&frame)
	if err != nil || len(hands) != 0 {
		t.Fatalf("expected no hands, got %v %v", hands, err)
	}

	mock.SetHands(OpenPalmLandmarks(), FistLandmarks())
	hands, _ = mock.Detect(&frame)
	if len(hands) != 2 {
		t.Errorf("expected 2 hands, got %d", len(hands))
	}

	mock.SetError(errors.New("boom"))
	if _, err := mock.Detect(&frame); err == nil {
		t.Error("expected error")
	}
	if mock.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", mock.Calls())
	}
}

func TestProvider_Detect(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	t.Run("first hand annotated", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands(OpenPalmLandmarks(), FistLandmarks())
		p := NewProvider(mock, nil)

		d := p.Detect(&frame)
		defer d.Annotated.Close()

		if d.Hand == nil {
			t.Fatal("expected a hand")
		}
		if d.Hand.Points != OpenPalmLandmarks().Points {
			t.Error("provider should report the first hand")
		}
		if len(d.Features()) != NumFeatures {
			t.Errorf("expected %d features", NumFeatures)
		}
		if d.Annotated.Rows() != 480 || d.Annotated.Cols() != 640 {
			t.Errorf("annotated frame is %dx%d", d.Annotated.Cols(), d.Annotated.Rows())
		}
	})

	t.Run("detector error means no hand", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetError(errors.New("service crashed"))
		p := NewProvider(mock, nil)

		d := p.Detect(&frame)
		defer d.Annotated.Close()

		if d.Hand != nil {
			t.Error("expected no hand on detector error")
		}
		if d.Annotated.Empty() {
			t.Error("annotated frame should still be returned")
		}
	})
}
