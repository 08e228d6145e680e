package fsys

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchEvent represents a filesystem event type
type WatchEvent string

// Watch event types
const (
	EventCreate WatchEvent = "create"
	EventModify WatchEvent = "modify"
	EventDelete WatchEvent = "delete"
	EventRename WatchEvent = "rename"
	EventChmod  WatchEvent = "chmod"
)

// Change is an opaque "something changed under this path" notification.
type Change struct {
	Path  string     // Path reported by the backend
	Event WatchEvent // Event type, informational only
	Time  time.Time  // When the event was received
}

// Watcher maintains a set of watched directories and reports changes in
// them. Watching is not recursive: each expanded directory is its own target.
type Watcher interface {
	Watch(path string) error
	Unwatch(path string) error
	Events() <-chan Change
	Errors() <-chan error
	Close() error
}

// changeBuffer bounds the number of undelivered changes. Changes are coarse
// invalidations, so once the buffer holds one the rest can be dropped.
const changeBuffer = 64

// NotifyWatcher is a Watcher backed by fsnotify.
type NotifyWatcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	events chan Change
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

var _ Watcher = (*NotifyWatcher)(nil)

// NewNotifyWatcher starts an fsnotify watcher with no targets.
func NewNotifyWatcher(logger *zap.Logger) (*NotifyWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}

	w := &NotifyWatcher{
		watcher: watcher,
		logger:  logger,
		events:  make(chan Change, changeBuffer),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch adds path to the watched set.
func (w *NotifyWatcher) Watch(path string) error {
	if err := w.watcher.Add(path); err != nil {
		return wrapError("watch", path, err)
	}
	w.logger.Debug("watching", zap.String("path", path))
	return nil
}

// Unwatch removes path from the watched set.
func (w *NotifyWatcher) Unwatch(path string) error {
	if err := w.watcher.Remove(path); err != nil {
		return wrapError("unwatch", path, err)
	}
	w.logger.Debug("unwatched", zap.String("path", path))
	return nil
}

// Events returns the change stream. It is closed by Close.
func (w *NotifyWatcher) Events() <-chan Change { return w.events }

// Errors returns backend errors. It is closed by Close.
func (w *NotifyWatcher) Errors() <-chan error { return w.errors }

// Close stops the backend and closes both channels.
func (w *NotifyWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.watcher.Close()
		w.wg.Wait()
		close(w.events)
		close(w.errors)
	})
	return w.closeErr
}

func (w *NotifyWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			change := Change{
				Path:  event.Name,
				Event: eventType(event.Op),
				Time:  time.Now(),
			}
			select {
			case w.events <- change:
			default:
				w.logger.Debug("change dropped, invalidation already queued", zap.String("path", event.Name))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; report a change so that state gets recomputed.
				select {
				case w.events <- Change{Event: EventModify, Time: time.Now()}:
				default:
				}
			}
			select {
			case w.errors <- fmt.Errorf("watcher error: %w", err):
			default:
				w.logger.Warn("watcher error", zap.Error(err))
			}

		case <-w.done:
			return
		}
	}
}

// eventType maps an fsnotify op to a WatchEvent, preferring the most
// structural change when several bits are set.
func eventType(op fsnotify.Op) WatchEvent {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate
	case op.Has(fsnotify.Remove):
		return EventDelete
	case op.Has(fsnotify.Rename):
		return EventRename
	case op.Has(fsnotify.Write):
		return EventModify
	default:
		return EventChmod
	}
}
