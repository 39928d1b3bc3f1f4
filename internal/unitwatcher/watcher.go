// Package unitwatcher implements the filesystem Watcher (L0, §4.5): it
// walks each configured unit directory, emits a synthetic "added" status
// for every file already present, then watches for further Create/Write/
// Remove/Rename events and turns each into a unit status broadcast. Bursts
// of raw events are debounced into a single RescanRequest. Adapted from
// original_source/src/unitwatcher.rs (which wrapped the notify crate) and
// grounded on rclone-rclone/backend/local/changenotify_other.go's
// fsnotify consumption pattern (Events/Errors channel draining on a
// dedicated goroutine, ticker-based debounce of bursts).
package unitwatcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	throttle "github.com/boz/go-throttle"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitbroadcaster"
)

// DebounceWindow bounds how long a burst of filesystem events is collapsed
// into a single RescanRequest.
const DebounceWindow = 200 * time.Millisecond

// Watcher watches one or more unit directories and turns filesystem
// activity into UnitEvents on the broadcaster.
type Watcher struct {
	broadcaster unitbroadcaster.Broadcaster
	log         *logrus.Entry

	fsw       *fsnotify.Watcher
	throt     *throttle.Throttle
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Watcher wired to broadcaster and starts its event and
// debounce goroutines. Call AddPath for each directory to observe.
func New(broadcaster unitbroadcaster.Broadcaster, log *logrus.Entry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		broadcaster: broadcaster,
		log:         log,
		fsw:         fsw,
		throt:       throttle.New(DebounceWindow, false),
		done:        make(chan struct{}),
	}

	go w.requestRescansOnTick()
	go w.consumeEvents()

	return w, nil
}

// AddPath registers dir (and every subdirectory beneath it) for watching,
// and synthesizes a LoadStarted status for every unit file already present,
// matching add_path's initial directory scan.
func (w *Watcher) AddPath(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}

		w.emitStatus(path, unit.LoadStarted(path))
		return nil
	})
}

// Close stops the underlying fsnotify watcher and the debounce goroutine.
// Safe to call more than once; later calls return nil.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.throt.Stop()
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) consumeEvents() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.WithError(err).Warn("unit directory watch error")
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(ev.Name)
			return
		}
		w.emitStatus(ev.Name, unit.LoadStarted(ev.Name))

	case ev.Op&fsnotify.Write != 0:
		w.emitStatus(ev.Name, unit.UpdateStarted(ev.Name))

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename's old path is flattened into a removal here; the new
		// path (if any) arrives as its own separate Create event, matching
		// original_source's explicit Rename -> Remove(old)+Add(new) split.
		w.emitStatus(ev.Name, unit.UnloadStarted(ev.Name))

	default:
		return
	}

	w.throt.Trigger()
}

func (w *Watcher) emitStatus(path string, status unit.Status) {
	name, err := unit.FromPath(path)
	if err != nil {
		// Not a recognized unit file extension: silently ignored, matching
		// UnitStatusEvent::new_added/new_updated/new_removed returning None
		// for paths outside the six known kinds.
		return
	}
	w.broadcaster.Broadcast(unitbroadcaster.NewStatus(name, status))
}

func (w *Watcher) requestRescansOnTick() {
	for {
		select {
		case <-w.throt.C:
			w.broadcaster.Broadcast(unitbroadcaster.RescanRequest())
		case <-w.done:
			return
		}
	}
}
