package narrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pagecoach/lectern/pkg/provider/speech"
	speechmock "github.com/pagecoach/lectern/pkg/provider/speech/mock"
)

var testVoice = speech.Voice{ID: "zh-TW-HsiaoChenNeural", Rate: "-2%"}

func TestNewSynthesizerValidation(t *testing.T) {
	if _, err := NewSynthesizer(nil, testVoice, 0); err == nil {
		t.Error("nil provider should fail")
	}
	if _, err := NewSynthesizer(&speechmock.Provider{}, speech.Voice{}, 0); err == nil {
		t.Error("empty voice ID should fail")
	}
}

func TestSpeakCollectsAudioAndBoundaries(t *testing.T) {
	provider := &speechmock.Provider{
		Events: []speech.Event{
			{Audio: []byte{1, 2}},
			{Boundary: &speech.WordBoundary{Text: "今天", Offset: 0, Duration: 400 * time.Millisecond}},
			{Audio: []byte{3, 4}},
			{Boundary: &speech.WordBoundary{Text: "學習", Offset: 450 * time.Millisecond, Duration: 500 * time.Millisecond}},
		},
	}
	s, err := NewSynthesizer(provider, testVoice, 0)
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}

	n, err := s.Speak(t.Context(), 5, "今天學習。")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if string(n.Audio) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("Audio = %v", n.Audio)
	}
	if len(n.Boundaries) != 2 {
		t.Fatalf("len(Boundaries) = %d, want 2", len(n.Boundaries))
	}
	if n.Text != "今天學習。" {
		t.Errorf("Text = %q", n.Text)
	}
	// Fake bytes do not decode as MP3, so duration falls back to the last
	// boundary's end.
	if want := 950 * time.Millisecond; n.Duration != want {
		t.Errorf("Duration = %v, want %v", n.Duration, want)
	}

	if len(provider.Calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(provider.Calls))
	}
	if provider.Calls[0].Voice != testVoice {
		t.Errorf("voice = %+v, want %+v", provider.Calls[0].Voice, testVoice)
	}
}

func TestSpeakStartFailure(t *testing.T) {
	cause := errors.New("bad credentials")
	s, _ := NewSynthesizer(&speechmock.Provider{Err: cause}, testVoice, 0)

	_, err := s.Speak(t.Context(), 2, "text")
	var synErr *SynthesisError
	if !errors.As(err, &synErr) {
		t.Fatalf("err = %v, want *SynthesisError", err)
	}
	if synErr.Page != 2 {
		t.Errorf("Page = %d, want 2", synErr.Page)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
}

func TestSpeakMidStreamFailure(t *testing.T) {
	cause := errors.New("connection reset")
	provider := &speechmock.Provider{
		Events: []speech.Event{
			{Audio: []byte{1}},
			{Err: cause},
		},
	}
	s, _ := NewSynthesizer(provider, testVoice, 0)

	_, err := s.Speak(t.Context(), 4, "text")
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped %v", err, cause)
	}
}

func TestSpeakEmptyStreamFails(t *testing.T) {
	s, _ := NewSynthesizer(&speechmock.Provider{}, testVoice, 0)

	_, err := s.Speak(t.Context(), 1, "text")
	var synErr *SynthesisError
	if !errors.As(err, &synErr) {
		t.Fatalf("err = %v, want *SynthesisError", err)
	}
}

func TestSpeakTimeout(t *testing.T) {
	delay := make(chan struct{})
	defer close(delay)
	provider := &speechmock.Provider{
		Events: []speech.Event{{Audio: []byte{1}}},
		Delay:  delay,
	}
	s, _ := NewSynthesizer(provider, testVoice, 10*time.Millisecond)

	_, err := s.Speak(t.Context(), 9, "text")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestSpeakAudioOnlyNoDuration(t *testing.T) {
	// Undecodable audio and no boundaries leaves no way to size the track.
	provider := &speechmock.Provider{
		Events: []speech.Event{{Audio: []byte{0xde, 0xad}}},
	}
	s, _ := NewSynthesizer(provider, testVoice, 0)

	if _, err := s.Speak(t.Context(), 1, "text"); err == nil {
		t.Error("expected error when duration cannot be determined")
	}
}
