package resilience

import (
	"errors"
	"testing"

	"github.com/pagecoach/lectern/pkg/provider/speech"
	speechmock "github.com/pagecoach/lectern/pkg/provider/speech/mock"
)

func TestSpeechFallbackUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &speechmock.Provider{Events: []speech.Event{{Audio: []byte{1}}}}
	secondary := &speechmock.Provider{Events: []speech.Event{{Audio: []byte{2}}}}

	f := NewSpeechFallback(primary, "edge", FallbackConfig{})
	f.AddFallback("elevenlabs", secondary)

	ch, err := f.Synthesize(t.Context(), "你好。", speech.Voice{ID: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	ev := <-ch
	if string(ev.Audio) != string([]byte{1}) {
		t.Error("expected audio from primary")
	}
	if len(secondary.Calls) != 0 {
		t.Error("fallback called while primary healthy")
	}
}

func TestSpeechFallbackFailsOver(t *testing.T) {
	primary := &speechmock.Provider{Err: errors.New("handshake refused")}
	secondary := &speechmock.Provider{Events: []speech.Event{{Audio: []byte{2}}}}

	f := NewSpeechFallback(primary, "edge", FallbackConfig{})
	f.AddFallback("elevenlabs", secondary)

	ch, err := f.Synthesize(t.Context(), "你好。", speech.Voice{ID: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	ev := <-ch
	if string(ev.Audio) != string([]byte{2}) {
		t.Error("expected audio from fallback")
	}
	if len(primary.Calls) != 1 {
		t.Errorf("primary calls = %d, want 1", len(primary.Calls))
	}
}

func TestSpeechFallbackAllFailed(t *testing.T) {
	primary := &speechmock.Provider{Err: errors.New("down")}
	secondary := &speechmock.Provider{Err: errors.New("also down")}

	f := NewSpeechFallback(primary, "edge", FallbackConfig{})
	f.AddFallback("elevenlabs", secondary)

	_, err := f.Synthesize(t.Context(), "你好。", speech.Voice{ID: "v"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
