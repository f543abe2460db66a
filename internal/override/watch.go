package override

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler receives a notification that an override file changed.
type Handler func(kind Kind)

// Watcher watches the override directory and reports which override file
// changed. Rapid successive writes to the same file are coalesced.
type Watcher struct {
	store *Store
	delay time.Duration

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	handlers []Handler
	pending  map[Kind]*time.Timer
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewWatcher creates a watcher for the store's directory. A delay of zero
// uses a 100ms debounce window.
func NewWatcher(store *Store, delay time.Duration) *Watcher {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Watcher{
		store:   store,
		delay:   delay,
		pending: make(map[Kind]*time.Timer),
		closeCh: make(chan struct{}),
	}
}

// OnChange registers a change handler. Handlers run on the watcher
// goroutine after the debounce window closes.
func (w *Watcher) OnChange(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching. A missing override directory is not an error;
// overrides simply stay absent until the next start.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil || w.closed {
		return nil
	}
	if _, err := os.Stat(w.store.Dir()); os.IsNotExist(err) {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.store.Dir()); err != nil {
		fsw.Close()
		return err
	}

	w.fsw = fsw
	w.closedWg.Add(1)
	go w.processLoop(fsw)
	return nil
}

// Close stops the watcher and cancels pending notifications.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for kind, timer := range w.pending {
		timer.Stop()
		delete(w.pending, kind)
	}
	fsw := w.fsw
	w.mu.Unlock()

	if fsw != nil {
		err := fsw.Close()
		w.closedWg.Wait()
		return err
	}
	return nil
}

func (w *Watcher) processLoop(fsw *fsnotify.Watcher) {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
				event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				w.handleEvent(event.Name)
			}

		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// handleEvent debounces a change to one of the known override files.
func (w *Watcher) handleEvent(path string) {
	kind, ok := kindForFile(filepath.Base(path))
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, exists := w.pending[kind]; exists {
		timer.Reset(w.delay)
		return
	}
	w.pending[kind] = time.AfterFunc(w.delay, func() {
		w.fire(kind)
	})
}

func (w *Watcher) fire(kind Kind) {
	w.mu.Lock()
	if _, exists := w.pending[kind]; !exists {
		w.mu.Unlock()
		return
	}
	delete(w.pending, kind)
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, h := range handlers {
		h(kind)
	}
}

func kindForFile(name string) (Kind, bool) {
	switch name {
	case SystemPromptFile:
		return KindSystemPrompt, true
	case QuickFixesFile:
		return KindQuickFixes, true
	case RewriteOptionsFile:
		return KindRewriteOptions, true
	default:
		return 0, false
	}
}
