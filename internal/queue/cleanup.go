package queue

import (
	"log/slog"
	"time"
)

const (
	staleAfter    = 2 * time.Hour
	staleEvery    = 15 * time.Minute
	rolloverEvery = 5 * time.Minute
)

// StartAutomaticCleanup launches the two periodic sweeps: stale-patient
// expiry and day rollover. The rollover runs once eagerly so a restart
// across midnight reconciles immediately.
func (s *Store) StartAutomaticCleanup() {
	s.stopCleanup = make(chan struct{})

	s.sweepDayRollover()

	go func() {
		staleTicker := time.NewTicker(staleEvery)
		rolloverTicker := time.NewTicker(rolloverEvery)
		defer staleTicker.Stop()
		defer rolloverTicker.Stop()

		for {
			select {
			case <-staleTicker.C:
				s.sweepStale()
			case <-rolloverTicker.C:
				s.sweepDayRollover()
			case <-s.stopCleanup:
				return
			}
		}
	}()

	slog.Info("Limpieza automática iniciada",
		"staleEvery", staleEvery.String(),
		"rolloverEvery", rolloverEvery.String())
}

// StopAutomaticCleanup halts both sweeps. Safe to call more than once.
func (s *Store) StopAutomaticCleanup() {
	if s.stopCleanup == nil {
		return
	}
	s.cleanupOnce.Do(func() { close(s.stopCleanup) })
}

// ForceCleanup runs both sweeps immediately.
func (s *Store) ForceCleanup() {
	s.sweepStale()
	s.sweepDayRollover()
}

// sweepStale evicts every patient checked in more than two hours ago.
// Called patients are marked expired before removal; nobody is demoted
// back into a waiting line.
func (s *Store) sweepStale() {
	cutoff := time.Now().Add(-staleAfter)

	s.mu.Lock()
	removed := 0
	for id, p := range s.patients {
		if p.Timestamp.After(cutoff) {
			continue
		}
		if p.Status == StatusCalled {
			p.Status = StatusExpired
		}
		if sec, ok := s.sectors[p.Sector]; ok {
			sec.waiting = removeID(sec.waiting, id)
			sec.recent = removeID(sec.recent, id)
		}
		delete(s.patients, id)
		removed++
	}
	s.mu.Unlock()

	if removed > 0 {
		slog.Info("Pacientes vencidos eliminados", "count", removed)
		s.scheduleSave()
	}
}

// sweepDayRollover resets the store when the calendar day changes: it
// keeps only patients completed today, clears every waiting line and
// trims the recent lists. Idempotent within a day.
func (s *Store) sweepDayRollover() {
	now := time.Now()
	today := now.Format("2006-01-02")

	s.mu.Lock()
	if s.lastRollover == today {
		s.mu.Unlock()
		return
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	removed := 0
	for id, p := range s.patients {
		if p.Status == StatusCompleted && p.CompletedAt != nil && !p.CompletedAt.Before(midnight) {
			continue
		}
		delete(s.patients, id)
		removed++
	}
	for _, sec := range s.sectors {
		sec.waiting = nil
		var recent []string
		for _, id := range sec.recent {
			if _, ok := s.patients[id]; ok {
				recent = append(recent, id)
			}
		}
		sec.recent = recent
	}
	s.lastRollover = today
	s.mu.Unlock()

	slog.Info("Cambio de día procesado", "date", today, "removed", removed)
	s.scheduleSave()
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
