package server

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/AntonyCanut/gitlanes/internal/graph"
)

// pollLoop refreshes the cached state on a timer and whenever the watcher
// kicks it, broadcasting only what actually changed.
func (s *Server) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollPeriod)
	defer ticker.Stop()

	s.logger.Debug("repository polling started", "period", s.pollPeriod)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("repository polling stopped")
			return

		case <-ticker.C:
			s.pollOnce()

		case <-s.kick:
			s.pollOnce()
		}
	}
}

// refresh rebuilds graph and status from the current on-disk state without
// broadcasting. Used once at startup so the first client sees data.
func (s *Server) refresh() {
	g := graph.Build(s.repo, s.graphOpts)

	status, err := s.repo.GetStatus()
	if err != nil {
		s.logger.Warn("failed to compute status", "err", err)
	}

	s.cacheMu.Lock()
	s.cached.graph = g
	s.cached.status = status
	s.cacheMu.Unlock()
}

func (s *Server) pollOnce() {
	// Recover so one bad poll (e.g. a ref rewritten mid-read) cannot kill
	// the server; the next tick retries from scratch.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in poll loop", "panic", r)
		}
	}()

	if err := s.repo.Reload(); err != nil {
		s.logger.Warn("failed to reload repository", "err", err)
		return
	}

	g := graph.Build(s.repo, s.graphOpts)

	status, err := s.repo.GetStatus()
	if err != nil {
		s.logger.Warn("failed to compute status", "err", err)
		// Continue with nil status; the graph may still have changed.
	}

	s.cacheMu.RLock()
	graphChanged := !jsonEqual(s.cached.graph, g)
	statusChanged := status != nil && !jsonEqual(s.cached.status, status)
	s.cacheMu.RUnlock()

	if graphChanged {
		s.cacheMu.Lock()
		s.cached.graph = g
		s.cacheMu.Unlock()
		s.broadcastUpdate(MessageTypeGraph, g)
		s.logger.Info("graph changed, broadcasting", "commits", len(g.Nodes))
	}

	if statusChanged {
		s.cacheMu.Lock()
		s.cached.status = status
		s.cacheMu.Unlock()
		s.broadcastUpdate(MessageTypeStatus, status)
		s.logger.Info("status changed, broadcasting", "entries", len(status.Entries))
	}
}

// jsonEqual compares two values by their canonical JSON encoding; fields are
// emitted in declaration order, so equal state encodes identically.
func jsonEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	aJSON, errA := json.Marshal(a)
	bJSON, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		// Should not happen for our payload types; fall back to DeepEqual.
		return reflect.DeepEqual(a, b)
	}

	return string(aJSON) == string(bJSON)
}
