package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backdate(s *Store, id string, d time.Duration) {
	s.mu.Lock()
	s.patients[id].Timestamp = s.patients[id].Timestamp.Add(-d)
	s.mu.Unlock()
}

func TestSweepStaleEvictsOldWaiting(t *testing.T) {
	s := NewStore(nil)

	old := addWaiting(s, "151", "OLD", "08:00")
	fresh := addWaiting(s, "151", "NEW", "09:00")
	backdate(s, old.ID, 3*time.Hour)

	s.sweepStale()

	st := s.GetSectorState("151")
	require.Len(t, st.Waiting, 1)
	assert.Equal(t, fresh.ID, st.Waiting[0].ID)
	assert.False(t, s.HasPatient("OLD"))
	assert.True(t, s.HasPatient("NEW"))
}

func TestSweepStaleEvictsCalledWithoutRequeue(t *testing.T) {
	s := NewStore(nil)

	old := addWaiting(s, "151", "OLD", "08:00")
	require.NotNil(t, s.CallNext("151", 1))
	backdate(s, old.ID, 3*time.Hour)

	s.sweepStale()

	st := s.GetSectorState("151")
	assert.Empty(t, st.Waiting, "un llamado vencido no vuelve a la cola")
	assert.Empty(t, st.Called)
	assert.False(t, s.HasPatient("OLD"))
}

func TestSweepStaleDropsRecentReference(t *testing.T) {
	s := NewStore(nil)

	old := addWaiting(s, "151", "OLD", "08:00")
	require.NotNil(t, s.CallNext("151", 1))
	addWaiting(s, "151", "NEW", "09:00")
	require.NotNil(t, s.CallNext("151", 1)) // completes OLD into recent

	backdate(s, old.ID, 3*time.Hour)
	s.sweepStale()

	st := s.GetSectorState("151")
	assert.Empty(t, st.Recent)
}

func TestSweepStaleKeepsFreshUntouched(t *testing.T) {
	s := NewStore(nil)

	addWaiting(s, "151", "A", "08:00")
	s.sweepStale()

	assert.True(t, s.HasPatient("A"))
}

func TestDayRolloverKeepsOnlyTodaysCompleted(t *testing.T) {
	s := NewStore(nil)

	addWaiting(s, "151", "W", "08:00")
	doneToday := addWaiting(s, "151", "HOY", "08:10")
	doneYesterday := addWaiting(s, "151", "AYER", "08:20")

	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)
	s.mu.Lock()
	s.patients[doneToday.ID].Status = StatusCompleted
	s.patients[doneToday.ID].CompletedAt = &now
	s.patients[doneYesterday.ID].Status = StatusCompleted
	s.patients[doneYesterday.ID].CompletedAt = &yesterday
	sec := s.sectors["151"]
	sec.waiting = removeID(sec.waiting, doneToday.ID)
	sec.waiting = removeID(sec.waiting, doneYesterday.ID)
	sec.recent = []string{doneToday.ID, doneYesterday.ID}
	s.lastRollover = yesterday.Format("2006-01-02")
	s.mu.Unlock()

	s.sweepDayRollover()

	st := s.GetSectorState("151")
	assert.Empty(t, st.Waiting, "el cambio de día vacía la cola de espera")
	require.Len(t, st.Recent, 1)
	assert.Equal(t, doneToday.ID, st.Recent[0].ID)
	assert.False(t, s.HasPatient("W"))
	assert.False(t, s.HasPatient("AYER"))

	s.mu.Lock()
	assert.Equal(t, time.Now().Format("2006-01-02"), s.lastRollover)
	s.mu.Unlock()
}

func TestDayRolloverIdempotentWithinDay(t *testing.T) {
	s := NewStore(nil)

	s.sweepDayRollover()
	p := addWaiting(s, "151", "A", "08:00")

	// Same day: the second sweep must not touch anything.
	s.sweepDayRollover()

	st := s.GetSectorState("151")
	require.Len(t, st.Waiting, 1)
	assert.Equal(t, p.ID, st.Waiting[0].ID)
}

func TestStartStopAutomaticCleanup(t *testing.T) {
	s := NewStore(nil)

	s.StartAutomaticCleanup()
	s.mu.Lock()
	assert.Equal(t, time.Now().Format("2006-01-02"), s.lastRollover)
	s.mu.Unlock()

	s.StopAutomaticCleanup()
	s.StopAutomaticCleanup() // segunda vez no debe entrar en pánico
}

func TestStartRunsEagerRolloverAfterRestart(t *testing.T) {
	s := NewStore(nil)

	addWaiting(s, "151", "VIEJO", "08:00")
	s.mu.Lock()
	s.lastRollover = time.Now().Add(-24 * time.Hour).Format("2006-01-02")
	s.mu.Unlock()

	// A snapshot restored across midnight reconciles immediately.
	s.StartAutomaticCleanup()
	defer s.StopAutomaticCleanup()

	assert.False(t, s.HasPatient("VIEJO"))
	assert.Empty(t, s.GetSectorState("151").Waiting)
}

func TestForceCleanupRunsBothSweeps(t *testing.T) {
	s := NewStore(nil)

	old := addWaiting(s, "151", "OLD", "08:00")
	backdate(s, old.ID, 3*time.Hour)

	s.ForceCleanup()

	assert.False(t, s.HasPatient("OLD"))
	s.mu.Lock()
	assert.Equal(t, time.Now().Format("2006-01-02"), s.lastRollover)
	s.mu.Unlock()
}
