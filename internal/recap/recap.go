// Package recap generates a short spoken-style summary of a completed
// teaching segment from the narration that was actually presented.
package recap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pagecoach/lectern/internal/observe"
	"github.com/pagecoach/lectern/internal/session"
	"github.com/pagecoach/lectern/pkg/provider/llm"
)

// DefaultTimeout bounds one recap completion call.
const DefaultTimeout = 30 * time.Second

const systemPrompt = "你是課堂助教。請用三到五句話總結這個教學段落的重點,語氣親切,適合唸給學生聽。"

// Recapper turns segment summaries into short recap texts via a text LLM and
// keeps the most recent result for the control surface to serve.
type Recapper struct {
	provider llm.Provider
	timeout  time.Duration

	mu   sync.Mutex
	last string
}

// New creates a Recapper. A non-positive timeout selects DefaultTimeout.
func New(provider llm.Provider, timeout time.Duration) (*Recapper, error) {
	if provider == nil {
		return nil, errors.New("recap: provider must not be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Recapper{provider: provider, timeout: timeout}, nil
}

// Summarize generates a recap for the segment and stores it as the latest.
func (r *Recapper) Summarize(ctx context.Context, summary session.SegmentSummary) (string, error) {
	if len(summary.VoiceTexts) == 0 {
		return "", errors.New("recap: segment has no narration")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user := fmt.Sprintf("教材 %s 第%d頁到第%d頁的導讀內容如下:\n\n%s",
		summary.Document, summary.StartPage, summary.EndPage,
		strings.Join(summary.VoiceTexts, "\n"))

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: user}},
		Temperature:  0.4,
	})
	if err != nil {
		return "", fmt.Errorf("recap: completion: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.New("recap: empty completion")
	}

	r.mu.Lock()
	r.last = text
	r.mu.Unlock()
	return text, nil
}

// Last returns the most recent recap, or the empty string.
func (r *Recapper) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Hook adapts the Recapper into a session segment-end hook. Failures are
// logged, never fatal: a missing recap should not disturb the session.
func (r *Recapper) Hook() func(context.Context, session.SegmentSummary) {
	return func(ctx context.Context, summary session.SegmentSummary) {
		if _, err := r.Summarize(ctx, summary); err != nil {
			observe.Logger(ctx).Warn("segment recap failed",
				"document", summary.Document,
				"start_page", summary.StartPage,
				"end_page", summary.EndPage,
				"error", err)
		}
	}
}
