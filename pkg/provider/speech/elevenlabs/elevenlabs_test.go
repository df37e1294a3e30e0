package elevenlabs

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pagecoach/lectern/pkg/provider/speech"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New accepted an empty API key")
	}
}

func TestRateToSpeed(t *testing.T) {
	tests := []struct {
		rate string
		want float64
	}{
		{"", 0},
		{"-2%", 0.98},
		{"+10%", 1.1},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := rateToSpeed(tt.rate); got != tt.want {
			t.Errorf("rateToSpeed(%q) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestWordBoundaries(t *testing.T) {
	a := &alignment{
		Characters: []string{"h", "i", " ", "y", "o", "u"},
		StartTimes: []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5},
		EndTimes:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
	}
	got := wordBoundaries(a)
	want := []speech.WordBoundary{
		{Text: "hi", Offset: 0, Duration: 200 * time.Millisecond},
		{Text: "you", Offset: 300 * time.Millisecond, Duration: 300 * time.Millisecond},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d boundaries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Text != want[i].Text {
			t.Errorf("boundary[%d].Text = %q, want %q", i, got[i].Text, want[i].Text)
		}
		if got[i].Offset != want[i].Offset {
			t.Errorf("boundary[%d].Offset = %v, want %v", i, got[i].Offset, want[i].Offset)
		}
	}
}

func TestWordBoundariesDegenerate(t *testing.T) {
	if got := wordBoundaries(nil); got != nil {
		t.Errorf("nil alignment: got %v, want nil", got)
	}
	// Mismatched slice lengths must not panic.
	a := &alignment{Characters: []string{"a", "b"}, StartTimes: []float64{0}, EndTimes: []float64{0.1}}
	if got := wordBoundaries(a); got != nil {
		t.Errorf("mismatched alignment: got %v, want nil", got)
	}
}

func TestSynthesizeAgainstMockServer(t *testing.T) {
	audio := []byte{0xff, 0xf3, 0x44, 0x00}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "el-test" {
			t.Errorf("xi-api-key = %q, want %q", got, "el-test")
		}
		if !strings.Contains(r.URL.Path, "/v1/text-to-speech/voice-1/with-timestamps") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "hello there" {
			t.Errorf("request text = %q", req.Text)
		}
		_ = json.NewEncoder(w).Encode(synthesisResponse{
			AudioBase64: base64.StdEncoding.EncodeToString(audio),
			Alignment: &alignment{
				Characters: []string{"h", "i"},
				StartTimes: []float64{0, 0.2},
				EndTimes:   []float64{0.2, 0.4},
			},
		})
	}))
	defer srv.Close()

	p, err := New("el-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	events, err := p.Synthesize(t.Context(), "hello there", speech.Voice{ID: "voice-1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	var gotAudio []byte
	var boundaries int
	for ev := range events {
		switch {
		case ev.Err != nil:
			t.Fatalf("unexpected stream error: %v", ev.Err)
		case ev.Audio != nil:
			gotAudio = append(gotAudio, ev.Audio...)
		case ev.Boundary != nil:
			boundaries++
		}
	}
	if string(gotAudio) != string(audio) {
		t.Errorf("audio = %v, want %v", gotAudio, audio)
	}
	if boundaries != 1 {
		t.Errorf("boundaries = %d, want 1", boundaries)
	}
}

func TestSynthesizeSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "voice missing", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("el-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(t.Context(), "hi", speech.Voice{ID: "nope"}); err == nil {
		t.Error("Synthesize swallowed a non-200 response")
	}
}
