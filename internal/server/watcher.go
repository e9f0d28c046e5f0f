package server

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceTime = 100 * time.Millisecond

// startWatcher initializes filesystem monitoring for the Git repository.
// It watches the git directory and its refs/ tree for changes and nudges the
// poll loop, so updates reach clients well before the next ticker fire.
func (s *Server) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	paths := []string{
		s.repo.GitDir(),
		filepath.Join(s.repo.GitDir(), "refs"),
		filepath.Join(s.repo.GitDir(), "refs", "heads"),
	}
	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return err
		}
	}

	s.wg.Add(1)
	go s.watchLoop(watcher)

	s.logger.Info("watching git directory for changes")
	return nil
}

func (s *Server) watchLoop(watcher *fsnotify.Watcher) {
	defer s.wg.Done()
	defer watcher.Close()

	var debounceTimer *time.Timer

	for {
		select {
		case <-s.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(event) {
				continue
			}

			s.logger.Debug("change detected", "path", filepath.Base(event.Name))

			// Git writes several files per operation; coalesce the burst
			// into one poll.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceTime, s.requestPoll)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "err", err)
		}
	}
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	path := event.Name

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return true
	}
	if strings.HasSuffix(base, ".lock") {
		return true
	}
	if strings.Contains(path, string(filepath.Separator)+"logs"+string(filepath.Separator)) {
		return true
	}
	if base == "config" {
		return true
	}

	return false
}
