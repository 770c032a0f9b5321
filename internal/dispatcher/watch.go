package dispatcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/neurosnap/zmx-sub000/internal/config"
)

// watchDebounce coalesces a burst of socket create/remove events (e.g.
// several sessions starting at once) into a single refresh.
const watchDebounce = 100 * time.Millisecond

// pollInterval is the refresh period used when fsnotify can't watch
// cfg.SessionsDir (e.g. an overlay filesystem without inotify support).
const pollInterval = 2 * time.Second

// Watch calls render once immediately, then again every time a session
// socket appears or disappears under cfg.SessionsDir, until stop is
// closed. It powers `zmx list --watch`. If the inotify watch can't be
// installed, it falls back to polling the directory on pollInterval
// instead of failing outright.
func Watch(log zerolog.Logger, cfg *config.Config, stop <-chan struct{}, render func([]SessionInfo)) error {
	refresh := func() {
		infos, err := List(log, cfg)
		if err != nil {
			return
		}
		render(infos)
	}
	refresh()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return pollLoop(stop, refresh)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.SessionsDir); err != nil {
		return pollLoop(stop, refresh)
	}

	var timer *time.Timer
	for {
		select {
		case <-stop:
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, refresh)
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok || err == nil {
				continue
			}
		}
	}
}

func pollLoop(stop <-chan struct{}, refresh func()) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			refresh()
		}
	}
}
