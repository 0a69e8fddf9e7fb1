package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addWaiting(s *Store, sector, code, horaInicial string) Patient {
	return s.AddPatient(Patient{
		Code:        code,
		Name:        "PACIENTE " + code,
		Sector:      sector,
		HoraInicial: horaInicial,
	})
}

func TestOrderIsBySlotNotArrival(t *testing.T) {
	s := NewStore(nil)

	late := addWaiting(s, "151", "C1", "09:00")
	early := addWaiting(s, "151", "C2", "08:30")

	st := s.GetSectorState("151")
	require.Len(t, st.Waiting, 2)
	assert.Equal(t, early.ID, st.Waiting[0].ID, "el turno de las 08:30 va primero aunque llegó después")
	assert.Equal(t, late.ID, st.Waiting[1].ID)
	assert.Equal(t, 1, st.Waiting[0].Position)
	assert.Equal(t, 2, st.Waiting[1].Position)
}

func TestOrderTieBreakByArrival(t *testing.T) {
	s := NewStore(nil)

	first := addWaiting(s, "151", "T1", "10:00")
	second := addWaiting(s, "151", "T2", "10:00")

	st := s.GetSectorState("151")
	require.Len(t, st.Waiting, 2)
	assert.Equal(t, first.ID, st.Waiting[0].ID)
	assert.Equal(t, second.ID, st.Waiting[1].ID)
}

func TestOrderStableUnderInterleavings(t *testing.T) {
	s := NewStore(nil)

	slots := []string{"11:00", "08:15", "09:45", "08:15", "07:30", "10:00"}
	for i, slot := range slots {
		addWaiting(s, "200", fmt.Sprintf("X%d", i), slot)
	}

	st := s.GetSectorState("200")
	require.Len(t, st.Waiting, len(slots))
	for i := 1; i < len(st.Waiting); i++ {
		prev, cur := st.Waiting[i-1], st.Waiting[i]
		pm, cm := minutesOfDay(prev.HoraInicial), minutesOfDay(cur.HoraInicial)
		assert.LessOrEqual(t, pm, cm)
		if pm == cm {
			assert.True(t, prev.Timestamp.Before(cur.Timestamp) || prev.Timestamp.Equal(cur.Timestamp))
		}
	}
}

func TestCallNextScenario(t *testing.T) {
	s := NewStore(nil)

	addWaiting(s, "151", "A", "09:00")
	early := addWaiting(s, "151", "B", "08:30")

	// The 08:30 slot is called first.
	called := s.CallNext("151", 1)
	require.NotNil(t, called)
	assert.Equal(t, early.ID, called.ID)
	assert.Equal(t, StatusCalled, called.Status)
	assert.Equal(t, 1, called.Puesto)
	require.NotNil(t, called.CalledAt)

	// Second patient still waits; the called one occupies puesto 1.
	st := s.GetSectorState("151")
	require.Len(t, st.Waiting, 1)
	require.Len(t, st.Called, 1)
	assert.Equal(t, early.ID, st.Called[0].ID)
	require.NotNil(t, st.Current)
	assert.Equal(t, early.ID, st.Current.ID)
}

func TestCallNextEmptyLeavesCurrentAlone(t *testing.T) {
	s := NewStore(nil)

	addWaiting(s, "151", "B", "08:30")
	called := s.CallNext("151", 1)
	require.NotNil(t, called)

	// Nobody else waiting: empty result, called patient untouched.
	assert.Nil(t, s.CallNext("151", 1))

	st := s.GetSectorState("151")
	require.Len(t, st.Called, 1)
	assert.Equal(t, StatusCalled, st.Called[0].Status)
	assert.Empty(t, st.Recent)
}

func TestCallNextCompletesCurrentOfSamePuesto(t *testing.T) {
	s := NewStore(nil)

	first := addWaiting(s, "151", "B", "08:30")
	require.NotNil(t, s.CallNext("151", 1))

	second := addWaiting(s, "151", "A", "09:00")
	called := s.CallNext("151", 1)
	require.NotNil(t, called)
	assert.Equal(t, second.ID, called.ID)

	st := s.GetSectorState("151")
	require.Len(t, st.Recent, 1)
	assert.Equal(t, first.ID, st.Recent[0].ID)
	assert.Equal(t, StatusCompleted, st.Recent[0].Status)
	require.NotNil(t, st.Recent[0].CompletedAt)
}

func TestCallNextOtherPuestoDoesNotComplete(t *testing.T) {
	s := NewStore(nil)

	addWaiting(s, "151", "B", "08:30")
	addWaiting(s, "151", "A", "09:00")

	p1 := s.CallNext("151", 1)
	p2 := s.CallNext("151", 2)
	require.NotNil(t, p1)
	require.NotNil(t, p2)

	// Both puestos serve concurrently; neither call completed the other.
	st := s.GetSectorState("151")
	assert.Len(t, st.Called, 2)
	assert.Empty(t, st.Recent)
	assert.Equal(t, 1, st.Called[0].Puesto)
	assert.Equal(t, 2, st.Called[1].Puesto)
}

func TestRecentBoundedToFiveNewestFirst(t *testing.T) {
	s := NewStore(nil)

	var ids []string
	for i := 0; i < 8; i++ {
		p := addWaiting(s, "151", fmt.Sprintf("R%d", i), fmt.Sprintf("0%d:00", i+1))
		ids = append(ids, p.ID)
		require.NotNil(t, s.CallNext("151", 1))
	}

	// 8 calls on the same puesto completed the first 7; recent keeps
	// the newest 5.
	st := s.GetSectorState("151")
	require.Len(t, st.Recent, maxRecent)
	for i := 0; i < maxRecent; i++ {
		assert.Equal(t, ids[6-i], st.Recent[i].ID)
	}
}

func TestConcurrentCallNextDequeuesEachPatientOnce(t *testing.T) {
	s := NewStore(nil)

	const n = 50
	for i := 0; i < n; i++ {
		addWaiting(s, "300", fmt.Sprintf("P%d", i), "08:00")
	}

	results := make(chan *Patient, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(puesto int) {
			defer wg.Done()
			results <- s.CallNext("300", puesto)
		}(i + 1) // distinct puestos so no call completes another
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for p := range results {
		require.NotNil(t, p)
		assert.False(t, seen[p.ID], "paciente %s llamado dos veces", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, seen, n)
	assert.Empty(t, s.GetSectorState("300").Waiting)
}

func TestMarkAttending(t *testing.T) {
	s := NewStore(nil)

	p := addWaiting(s, "151", "A", "08:00")
	assert.False(t, s.MarkAttending(p.ID), "waiting no pasa a atención")
	assert.False(t, s.MarkAttending("no-existe"))

	require.NotNil(t, s.CallNext("151", 1))
	assert.True(t, s.MarkAttending(p.ID))
	assert.False(t, s.MarkAttending(p.ID), "ya está en atención")
}

func TestHasPatientIgnoresExpired(t *testing.T) {
	s := NewStore(nil)

	p := addWaiting(s, "151", "DUP", "08:00")
	assert.True(t, s.HasPatient("DUP"))
	require.NotNil(t, s.GetPatientByCode("DUP"))

	s.mu.Lock()
	s.patients[p.ID].Status = StatusExpired
	s.mu.Unlock()

	assert.False(t, s.HasPatient("DUP"), "un código vencido vuelve a ser utilizable")
	assert.Nil(t, s.GetPatientByCode("DUP"))
}

func TestResetAndResetSector(t *testing.T) {
	s := NewStore(nil)

	addWaiting(s, "151", "A", "08:00")
	addWaiting(s, "152", "B", "08:00")

	s.ResetSector("151")
	assert.Equal(t, []string{"152"}, s.Sectors())

	s.Reset()
	assert.Empty(t, s.Sectors())
	assert.False(t, s.HasPatient("B"))
}

func TestGetStateReturnsCopies(t *testing.T) {
	s := NewStore(nil)

	addWaiting(s, "151", "A", "08:00")
	st := s.GetState()
	st.Sectors["151"].Waiting[0].Name = "MODIFICADO"

	again := s.GetState()
	assert.Equal(t, "PACIENTE A", again.Sectors["151"].Waiting[0].Name)
}
