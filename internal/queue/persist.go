package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const saveDebounce = 1 * time.Second

// Snapshotter stores and retrieves the serialized queue snapshot.
// Load returns (nil, nil) when no snapshot exists yet.
type Snapshotter interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// Snapshot is the persisted artifact: flat patient records plus the
// per-sector id sequences, tagged with the save time.
type Snapshot struct {
	Patients  []Patient        `json:"patients"`
	Sectors   []SectorSnapshot `json:"sectors"`
	LastReset string           `json:"lastReset,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type SectorSnapshot struct {
	ID      string   `json:"id"`
	Waiting []string `json:"waiting"`
	Recent  []string `json:"recent"`
}

// scheduleSave coalesces bursts of mutations into a single write: each
// call supersedes the pending debounce timer. The write itself happens
// on the timer goroutine, outside the store lock.
func (s *Store) scheduleSave() {
	if s.snap == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(saveDebounce, s.saveNow)
}

// saveNow serializes a point-in-time copy and hands it to the
// Snapshotter. Failures are logged and absorbed; in-memory state stays
// authoritative and the next mutation retriggers a save.
func (s *Store) saveNow() {
	snap := s.ExportState()
	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("No se pudo serializar el snapshot", "error", err)
		return
	}
	if err := s.snap.Save(context.Background(), data); err != nil {
		slog.Error("No se pudo guardar el snapshot", "error", err)
		return
	}
	slog.Debug("Snapshot guardado", "bytes", len(data), "patients", len(snap.Patients))
}

// Load restores the last snapshot at startup. A missing artifact
// starts empty; a corrupt one logs and starts empty rather than
// failing startup.
func (s *Store) Load(ctx context.Context) error {
	if s.snap == nil {
		return nil
	}
	data, err := s.snap.Load(ctx)
	if err != nil {
		return fmt.Errorf("no se pudo leer el snapshot: %w", err)
	}
	if data == nil {
		slog.Info("Sin snapshot previo, iniciando vacío")
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("Snapshot corrupto, iniciando vacío", "error", err)
		return nil
	}

	s.ImportState(snap)
	slog.Info("Snapshot restaurado",
		"patients", len(snap.Patients),
		"sectors", len(snap.Sectors),
		"savedAt", snap.Timestamp)
	return nil
}

// ExportState extracts the full state for persistence or operational
// backup.
func (s *Store) ExportState() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Patients:  make([]Patient, 0, len(s.patients)),
		Sectors:   make([]SectorSnapshot, 0, len(s.sectors)),
		LastReset: s.lastRollover,
		Timestamp: time.Now(),
	}
	for _, p := range s.patients {
		snap.Patients = append(snap.Patients, *p)
	}
	for id, sec := range s.sectors {
		snap.Sectors = append(snap.Sectors, SectorSnapshot{
			ID:      id,
			Waiting: append([]string(nil), sec.waiting...),
			Recent:  append([]string(nil), sec.recent...),
		})
	}
	return snap
}

// ImportState replaces the store's state wholesale. The payload is
// accepted as-is, without re-validating queue invariants; restoring a
// hand-edited snapshot is an operational decision, not the store's.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	s.patients = make(map[string]*Patient, len(snap.Patients))
	for i := range snap.Patients {
		p := snap.Patients[i]
		s.patients[p.ID] = &p
	}
	s.sectors = make(map[string]*sector, len(snap.Sectors))
	for _, ss := range snap.Sectors {
		sec := &sector{
			waiting: append([]string(nil), ss.Waiting...),
			recent:  append([]string(nil), ss.Recent...),
		}
		s.sortWaitingLocked(sec)
		s.sectors[ss.ID] = sec
	}
	s.lastRollover = snap.LastReset
	s.mu.Unlock()

	s.scheduleSave()
}

// Close stops the sweeps, cancels any pending debounce and flushes one
// final save so a clean shutdown never loses the last second of
// mutations.
func (s *Store) Close() {
	s.StopAutomaticCleanup()

	s.saveMu.Lock()
	pending := false
	if s.saveTimer != nil {
		pending = s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.saveMu.Unlock()

	if pending && s.snap != nil {
		s.saveNow()
	}
}
