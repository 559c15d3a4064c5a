package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// MinDebounce is the shortest debounce window the watcher accepts, so a
// manifest is never read while an editor is still writing it.
const MinDebounce = 500 * time.Millisecond

// Watcher keeps the registry in sync with the plugin directory.
type Watcher struct {
	loader         *Loader
	watcher        *fsnotify.Watcher
	debounce       time.Duration
	logger         zerolog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
	stopped        bool
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

// NewWatcher creates a watcher for the loader's directory. Debounce values
// below MinDebounce are raised to it.
func NewWatcher(loader *Loader, debounce time.Duration, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if debounce < MinDebounce {
		debounce = MinDebounce
	}

	return &Watcher{
		loader:         loader,
		watcher:        fw,
		debounce:       debounce,
		logger:         logger.With().Str("component", "plugin-watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. Events are handled until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.loader.Dir()); err != nil {
		return fmt.Errorf("failed to watch plugin directory: %w", err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Info().
		Str("path", w.loader.Dir()).
		Dur("debounce", w.debounce).
		Msg("Plugin watcher started")

	return nil
}

// Stop stops the watcher and cancels pending reloads.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}

		w.debounceMu.Lock()
		w.stopped = true
		for _, timer := range w.debounceTimers {
			timer.Stop()
		}
		clear(w.debounceTimers)
		w.debounceMu.Unlock()

		if closeErr := w.watcher.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close watcher: %w", closeErr)
		}
		w.wg.Wait()

		w.logger.Info().Msg("Plugin watcher stopped")
	})
	return err
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !IsManifestFile(event.Name) {
				continue
			}
			w.debounceEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.ctx.Done():
			return
		}
	}
}

// debounceEvent coalesces events per file; the last one in the window
// decides the action.
func (w *Watcher) debounceEvent(event fsnotify.Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.stopped {
		return
	}
	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	w.debounceTimers[event.Name] = time.AfterFunc(w.debounce, func() {
		// Registered under debounceMu so Stop either sees stopped set
		// first or waits for this reload.
		w.debounceMu.Lock()
		delete(w.debounceTimers, event.Name)
		if w.stopped || w.ctx.Err() != nil {
			w.debounceMu.Unlock()
			return
		}
		w.wg.Add(1)
		w.debounceMu.Unlock()

		defer w.wg.Done()
		w.processEvent(event)
	})
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	var err error
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		_, err = w.loader.LoadOne(w.ctx, event.Name)

	case event.Op&fsnotify.Write == fsnotify.Write:
		_, err = w.loader.Reload(w.ctx, event.Name)

	case event.Op&fsnotify.Remove == fsnotify.Remove:
		_, err = w.loader.Remove(event.Name)

	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// Editors that save by rename leave the file in place.
		if _, statErr := os.Stat(event.Name); statErr == nil {
			_, err = w.loader.Reload(w.ctx, event.Name)
		} else {
			_, err = w.loader.Remove(event.Name)
		}

	default:
		return
	}

	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, errDisabled) {
		w.logger.Error().
			Err(err).
			Str("path", event.Name).
			Str("op", event.Op.String()).
			Msg("Error handling plugin change")
	}
}
