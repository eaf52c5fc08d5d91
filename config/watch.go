package config

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// PresetWatcher reloads a preset file whenever it is written and hands
// the decoded preset to a callback. The parent directory is watched so
// editors that replace the file by rename are picked up too.
type PresetWatcher struct {
	path    string
	apply   func(*Preset)
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	applied atomic.Uint64
	failed  atomic.Uint64
}

// WatchPreset applies the preset at path once, if it exists, and then
// again after every change until Close.
func WatchPreset(path string, apply func(*Preset)) (*PresetWatcher, error) {
	if apply == nil {
		return nil, errors.New("preset callback cannot be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	pw := &PresetWatcher{
		path:    abs,
		apply:   apply,
		watcher: watcher,
		done:    make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"function": "WatchPreset",
		"path":     abs,
	}).Info("Watching preset file")

	pw.reload(false)

	pw.wg.Add(1)
	go pw.watchLoop()

	return pw, nil
}

// Path returns the watched file.
func (pw *PresetWatcher) Path() string { return pw.path }

// Applied returns how many presets were applied.
func (pw *PresetWatcher) Applied() uint64 { return pw.applied.Load() }

// Failed returns how many reloads failed to read or decode.
func (pw *PresetWatcher) Failed() uint64 { return pw.failed.Load() }

func (pw *PresetWatcher) watchLoop() {
	defer pw.wg.Done()

	for {
		select {
		case <-pw.done:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != pw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pw.reload(true)
			}
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "PresetWatcher.watchLoop",
				"error":    err.Error(),
			}).Warn("Preset watcher error")
		}
	}
}

func (pw *PresetWatcher) reload(required bool) {
	p, err := LoadPreset(pw.path)
	if err != nil {
		if required {
			pw.failed.Add(1)
			logrus.WithFields(logrus.Fields{
				"function": "PresetWatcher.reload",
				"path":     pw.path,
				"error":    err.Error(),
			}).Warn("Preset reload failed")
		}
		return
	}

	pw.apply(p)
	pw.applied.Add(1)

	logrus.WithFields(logrus.Fields{
		"function": "PresetWatcher.reload",
		"path":     pw.path,
		"empty":    p.Empty(),
	}).Debug("Preset applied")
}

// Close stops watching. It is idempotent.
func (pw *PresetWatcher) Close() error {
	var err error
	pw.once.Do(func() {
		close(pw.done)
		err = pw.watcher.Close()
		pw.wg.Wait()

		logrus.WithFields(logrus.Fields{
			"function": "PresetWatcher.Close",
			"path":     pw.path,
		}).Info("Preset watcher closed")
	})
	return err
}
