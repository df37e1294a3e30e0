// Package assets loads the presentation assets that shape narration: the
// generator instruction prompt, the per-page lead-in, and the pronunciation
// replacement table. Assets live in plain files so teachers can adjust them
// without touching the service; [Loader.Watch] picks up edits at runtime.
package assets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/pagecoach/lectern/internal/narrate"
)

// DefaultPageLead is the per-page lead-in appended to the prompt when no
// override is configured. The verb receives the 1-based page number.
const DefaultPageLead = "導讀P.%d內容。"

// reloadDelay batches filesystem events before re-reading asset files.
const reloadDelay = 200 * time.Millisecond

// Loader holds the current asset set and serves it to the packet builder.
// Safe for concurrent use.
type Loader struct {
	promptPath        string
	pronunciationPath string
	pageLead          string

	mu             sync.RWMutex
	prompt         string
	pronunciations []narrate.Replacement

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// Load reads the prompt file and, when pronunciationPath is non-empty, the
// pronunciation table. pageLead overrides [DefaultPageLead] when non-empty;
// it must contain a single %d verb.
func Load(promptPath, pageLead, pronunciationPath string) (*Loader, error) {
	if promptPath == "" {
		return nil, fmt.Errorf("assets: promptPath must not be empty")
	}
	if pageLead == "" {
		pageLead = DefaultPageLead
	}
	if strings.Count(pageLead, "%d") != 1 {
		return nil, fmt.Errorf("assets: page lead %q must contain exactly one %%d verb", pageLead)
	}

	l := &Loader{
		promptPath:        promptPath,
		pronunciationPath: pronunciationPath,
		pageLead:          pageLead,
		done:              make(chan struct{}),
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Prompt returns the generator instruction prompt.
func (l *Loader) Prompt() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.prompt
}

// PageLead returns the per-page lead-in for the given 1-based page number.
func (l *Loader) PageLead(page int) string {
	return fmt.Sprintf(l.pageLead, page)
}

// Pronunciations returns a copy of the replacement table.
func (l *Loader) Pronunciations() []narrate.Replacement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]narrate.Replacement, len(l.pronunciations))
	copy(out, l.pronunciations)
	return out
}

// Watch reloads asset files when they change on disk. Invalid content keeps
// the previous asset set. Call [Loader.Stop] to release the watcher.
func (l *Loader) Watch() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("assets: create fsnotify watcher: %w", err)
	}

	dirs := map[string]bool{filepath.Dir(l.promptPath): true}
	if l.pronunciationPath != "" {
		dirs[filepath.Dir(l.pronunciationPath)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("assets: watch %q: %w", dir, err)
		}
	}

	l.fsw = fsw
	go l.run()
	return nil
}

// Stop stops the file watcher. Safe to call when Watch was never started.
func (l *Loader) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		if l.fsw != nil {
			l.fsw.Close()
		}
	})
}

func (l *Loader) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	watched := map[string]bool{filepath.Base(l.promptPath): true}
	if l.pronunciationPath != "" {
		watched[filepath.Base(l.pronunciationPath)] = true
	}

	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-l.fsw.Events:
			if !ok {
				return
			}
			if !watched[filepath.Base(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
				timerC = timer.C
			} else {
				timer.Reset(reloadDelay)
			}
		case err, ok := <-l.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("assets watcher: fsnotify error", "err", err)
		case <-timerC:
			timer = nil
			timerC = nil
			if err := l.reload(); err != nil {
				slog.Warn("assets watcher: reload failed, keeping previous assets", "err", err)
				continue
			}
			slog.Info("assets reloaded",
				"prompt", l.promptPath,
				"pronunciations", l.pronunciationPath,
			)
		}
	}
}

// reload re-reads every asset file and swaps the loaded set atomically.
func (l *Loader) reload() error {
	data, err := os.ReadFile(l.promptPath)
	if err != nil {
		return fmt.Errorf("assets: read prompt %q: %w", l.promptPath, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return fmt.Errorf("assets: prompt file %q is empty", l.promptPath)
	}

	var pron []narrate.Replacement
	if l.pronunciationPath != "" {
		pron, err = loadPronunciations(l.pronunciationPath)
		if err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.prompt = prompt
	l.pronunciations = pron
	l.mu.Unlock()
	return nil
}

// loadPronunciations parses the replacement table. Order is preserved;
// replacements apply first to last.
func loadPronunciations(path string) ([]narrate.Replacement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("assets: read pronunciations %q: %w", path, err)
	}

	var entries []narrate.Replacement
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("assets: parse pronunciations %q: %w", path, err)
	}
	for i, e := range entries {
		if e.From == "" {
			return nil, fmt.Errorf("assets: pronunciations %q entry %d has empty \"from\"", path, i)
		}
	}
	return entries, nil
}
