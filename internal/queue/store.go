package queue

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxRecent = 5

// sector holds only patient ids; the patients map owns the records.
type sector struct {
	waiting []string // waiting patients, kept in slot order
	recent  []string // most recently completed, newest first
}

// Store is the in-memory authority over patient and sector state. One
// mutex guards everything: request handlers, the cleanup sweeps and the
// snapshot serializer all go through it.
type Store struct {
	mu       sync.Mutex
	patients map[string]*Patient
	sectors  map[string]*sector

	// lastRollover is the last date ("2006-01-02") the day-rollover
	// sweep processed.
	lastRollover string

	snap      Snapshotter
	saveMu    sync.Mutex
	saveTimer *time.Timer

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// NewStore creates an empty store. snap may be nil, in which case the
// store runs memory-only (used by tests).
func NewStore(snap Snapshotter) *Store {
	return &Store{
		patients: make(map[string]*Patient),
		sectors:  make(map[string]*sector),
		// A fresh store starts with today already processed; only a
		// restored snapshot from an earlier day (or the ticker crossing
		// midnight) triggers the rollover.
		lastRollover: time.Now().Format("2006-01-02"),
		snap:         snap,
	}
}

func (s *Store) sectorLocked(id string) *sector {
	sec, ok := s.sectors[id]
	if !ok {
		sec = &sector{}
		s.sectors[id] = sec
	}
	return sec
}

// sortWaitingLocked orders a sector's waiting line by slot start, ties
// broken by check-in time. Idempotent, so it runs defensively before
// every read as well as on every insert.
func (s *Store) sortWaitingLocked(sec *sector) {
	sort.SliceStable(sec.waiting, func(i, j int) bool {
		a, b := s.patients[sec.waiting[i]], s.patients[sec.waiting[j]]
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		am, bm := minutesOfDay(a.HoraInicial), minutesOfDay(b.HoraInicial)
		if am != bm {
			return am < bm
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

// AddPatient registers a check-in and inserts it into its sector's
// waiting line. The store assigns id, timestamp and status; it does not
// re-check code uniqueness, that is the caller's contract (the handler
// consults HasPatient before validating upstream).
func (s *Store) AddPatient(p Patient) Patient {
	p.ID = uuid.New().String()
	p.Timestamp = time.Now()
	p.Status = StatusWaiting
	p.CalledAt = nil
	p.CompletedAt = nil
	p.Puesto = 0
	p.Position = 0

	s.mu.Lock()
	stored := p
	s.patients[p.ID] = &stored
	sec := s.sectorLocked(p.Sector)
	sec.waiting = append(sec.waiting, p.ID)
	s.sortWaitingLocked(sec)
	s.mu.Unlock()

	slog.Info("Paciente agregado a la cola",
		"id", p.ID,
		"code", p.Code,
		"sector", p.Sector,
		"horaInicial", p.HoraInicial)

	s.scheduleSave()
	return p
}

// currentForPuestoLocked derives the occupant of a puesto: the most
// recently called patient in the sector still in "called" status for
// that puesto. Derived on every read, never stored.
func (s *Store) currentForPuestoLocked(sectorID string, puesto int) *Patient {
	var current *Patient
	for _, p := range s.patients {
		if p.Sector != sectorID || p.Status != StatusCalled || p.Puesto != puesto {
			continue
		}
		if current == nil || (p.CalledAt != nil && current.CalledAt != nil && p.CalledAt.After(*current.CalledAt)) {
			current = p
		}
	}
	return current
}

// CallNext serves a puesto: it completes the puesto's current patient,
// dequeues the head of the sector's waiting line and marks it called.
// An empty line returns nil without touching the current patient; that
// is an expected outcome, not an error.
func (s *Store) CallNext(sectorID string, puesto int) *Patient {
	s.mu.Lock()
	sec := s.sectorLocked(sectorID)
	s.sortWaitingLocked(sec)

	if len(sec.waiting) == 0 {
		s.mu.Unlock()
		return nil
	}

	now := time.Now()

	if current := s.currentForPuestoLocked(sectorID, puesto); current != nil {
		current.Status = StatusCompleted
		current.CompletedAt = &now
		sec.recent = append([]string{current.ID}, sec.recent...)
		if len(sec.recent) > maxRecent {
			sec.recent = sec.recent[:maxRecent]
		}
	}

	nextID := sec.waiting[0]
	sec.waiting = sec.waiting[1:]
	next := s.patients[nextID]
	var out Patient
	if next != nil {
		next.Status = StatusCalled
		next.CalledAt = &now
		next.Puesto = puesto
		out = *next
	}
	s.mu.Unlock()

	if next == nil {
		// Dangling id, queue entry dropped.
		slog.Warn("Paciente inexistente en la cola de espera", "id", nextID, "sector", sectorID)
		s.scheduleSave()
		return nil
	}

	slog.Info("Paciente llamado",
		"id", out.ID,
		"code", out.Code,
		"sector", sectorID,
		"puesto", puesto)

	s.scheduleSave()
	return &out
}

// MarkAttending moves a called patient to attending. Any other current
// status is a no-op returning false.
func (s *Store) MarkAttending(id string) bool {
	s.mu.Lock()
	p, ok := s.patients[id]
	if !ok || p.Status != StatusCalled {
		s.mu.Unlock()
		return false
	}
	p.Status = StatusAttending
	s.mu.Unlock()

	slog.Info("Paciente en atención", "id", id)
	s.scheduleSave()
	return true
}

// HasPatient reports whether an active (non-expired) patient holds the
// code. Expired records awaiting eviction do not block re-check-in.
func (s *Store) HasPatient(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patients {
		if p.Code == code && p.Status != StatusExpired {
			return true
		}
	}
	return false
}

// GetPatientByCode returns a copy of the active patient holding the
// code, or nil.
func (s *Store) GetPatientByCode(code string) *Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patients {
		if p.Code == code && p.Status != StatusExpired {
			out := *p
			return &out
		}
	}
	return nil
}

// GetState assembles the full snapshot: re-sorts every waiting line,
// recomputes positions and derives the called set per sector. Not a
// cheap read; it walks the whole store.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{Sectors: make(map[string]SectorState, len(s.sectors))}
	for id, sec := range s.sectors {
		state.Sectors[id] = s.sectorStateLocked(id, sec)
	}
	return state
}

// GetSectorState returns one sector's view, initializing the sector if
// it was never seen.
func (s *Store) GetSectorState(sectorID string) SectorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sectorStateLocked(sectorID, s.sectorLocked(sectorID))
}

func (s *Store) sectorStateLocked(sectorID string, sec *sector) SectorState {
	s.sortWaitingLocked(sec)

	st := SectorState{
		Waiting: make([]Patient, 0, len(sec.waiting)),
		Called:  []Patient{},
		Recent:  make([]Patient, 0, len(sec.recent)),
	}

	pos := 0
	for _, id := range sec.waiting {
		p, ok := s.patients[id]
		if !ok {
			continue
		}
		pos++
		cp := *p
		cp.Position = pos
		st.Waiting = append(st.Waiting, cp)
	}

	for _, p := range s.patients {
		if p.Sector == sectorID && p.Status == StatusCalled {
			st.Called = append(st.Called, *p)
		}
	}
	sort.Slice(st.Called, func(i, j int) bool {
		if st.Called[i].Puesto != st.Called[j].Puesto {
			return st.Called[i].Puesto < st.Called[j].Puesto
		}
		a, b := st.Called[i].CalledAt, st.Called[j].CalledAt
		return a != nil && b != nil && a.After(*b)
	})

	// Most recent call wins the single-current slot.
	for i := range st.Called {
		c := &st.Called[i]
		if st.Current == nil || (c.CalledAt != nil && st.Current.CalledAt != nil && c.CalledAt.After(*st.Current.CalledAt)) {
			cp := *c
			st.Current = &cp
		}
	}

	for _, id := range sec.recent {
		if p, ok := s.patients[id]; ok {
			st.Recent = append(st.Recent, *p)
		}
	}

	return st
}

// Sectors lists every known sector id, sorted.
func (s *Store) Sectors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sectors))
	for id := range s.sectors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset drops all patients and sectors.
func (s *Store) Reset() {
	s.mu.Lock()
	s.patients = make(map[string]*Patient)
	s.sectors = make(map[string]*sector)
	s.mu.Unlock()

	slog.Info("Cola reiniciada por completo")
	s.scheduleSave()
}

// ResetSector drops a sector's queues. Its patients stay in the store
// until the stale sweep evicts them, matching the original behavior.
func (s *Store) ResetSector(sectorID string) {
	s.mu.Lock()
	delete(s.sectors, sectorID)
	s.mu.Unlock()

	slog.Info("Sector reiniciado", "sector", sectorID)
	s.scheduleSave()
}
