package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/pagecoach/lectern/pkg/provider/gen"
	"github.com/pagecoach/lectern/pkg/provider/gen/gemini"
	genopenai "github.com/pagecoach/lectern/pkg/provider/gen/openai"
	"github.com/pagecoach/lectern/pkg/provider/llm"
	"github.com/pagecoach/lectern/pkg/provider/llm/anyllm"
	"github.com/pagecoach/lectern/pkg/provider/speech"
	"github.com/pagecoach/lectern/pkg/provider/speech/edge"
	"github.com/pagecoach/lectern/pkg/provider/speech/elevenlabs"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	generator map[string]func(ProviderEntry) (gen.Provider, error)
	speech    map[string]func(SpeechEntry) (speech.Provider, error)
	recap     map[string]func(RecapEntry) (llm.Provider, error)
}

// NewRegistry returns an empty [Registry]. Most callers want
// [DefaultRegistry], which comes pre-populated with the built-in providers.
func NewRegistry() *Registry {
	return &Registry{
		generator: make(map[string]func(ProviderEntry) (gen.Provider, error)),
		speech:    make(map[string]func(SpeechEntry) (speech.Provider, error)),
		recap:     make(map[string]func(RecapEntry) (llm.Provider, error)),
	}
}

// DefaultRegistry returns a [Registry] with all built-in provider factories
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterGenerator("gemini", func(e ProviderEntry) (gen.Provider, error) {
		var opts []gemini.Option
		if e.Model != "" {
			opts = append(opts, gemini.WithModel(e.Model))
		}
		return gemini.New(e.APIKey, opts...)
	})
	r.RegisterGenerator("openai", func(e ProviderEntry) (gen.Provider, error) {
		var opts []genopenai.Option
		if e.Model != "" {
			opts = append(opts, genopenai.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, genopenai.WithBaseURL(e.BaseURL))
		}
		return genopenai.New(e.APIKey, opts...)
	})

	r.RegisterSpeech("edge", func(e SpeechEntry) (speech.Provider, error) {
		return edge.New(), nil
	})
	r.RegisterSpeech("elevenlabs", func(e SpeechEntry) (speech.Provider, error) {
		var opts []elevenlabs.Option
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModel(e.Model))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})

	r.RegisterRecap("", func(e RecapEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if e.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
		}
		if e.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
		}
		return anyllm.New(e.Name, e.Model, opts...)
	})

	return r
}

// RegisterGenerator registers a narration generator factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterGenerator(name string, factory func(ProviderEntry) (gen.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generator[name] = factory
}

// RegisterSpeech registers a speech provider factory under name.
func (r *Registry) RegisterSpeech(name string, factory func(SpeechEntry) (speech.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = factory
}

// RegisterRecap registers a recap LLM factory under name. The factory
// registered under the empty name is the catch-all used for any name without
// an explicit registration; the default catch-all dispatches on entry.Name
// through the any-llm-go backends.
func (r *Registry) RegisterRecap(name string, factory func(RecapEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recap[name] = factory
}

// CreateGenerator instantiates a narration generator using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateGenerator(entry ProviderEntry) (gen.Provider, error) {
	r.mu.RLock()
	factory, ok := r.generator[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: generator/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSpeech instantiates a speech provider using the factory registered
// under entry.Name.
func (r *Registry) CreateSpeech(entry SpeechEntry) (speech.Provider, error) {
	r.mu.RLock()
	factory, ok := r.speech[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speech/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateRecap instantiates a recap LLM using the factory registered under
// entry.Name, falling back to the catch-all registration.
func (r *Registry) CreateRecap(entry RecapEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.recap[entry.Name]
	if !ok {
		factory, ok = r.recap[""]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recap/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// VoiceProfile converts the configured voice settings into the value passed
// to [speech.Provider.Synthesize].
func (e SpeechEntry) VoiceProfile() speech.Voice {
	return speech.Voice{
		ID:     e.Voice,
		Rate:   e.Rate,
		Volume: e.Volume,
	}
}
