package queue

import "time"

// Patient status lifecycle: waiting -> called -> attending -> completed,
// with expired as the timeout exit from waiting/called.
const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusAttending = "attending"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
)

// Patient is a single check-in. Field names follow the GXSalud response
// so the display clients can consume the state payload directly.
type Patient struct {
	ID                string `json:"id"`
	Code              string `json:"code"` // LabOSNro (barcode)
	Name              string `json:"name"`
	Cedula            string `json:"cedula"`
	Matricula         string `json:"matricula"`
	Usuario           string `json:"usuario"` // historia clínica
	Dependencia       string `json:"dependencia"`
	Sector            string `json:"sector"`
	SectorDescription string `json:"sectorDescription"`
	Fecha             string `json:"fecha"`
	HoraInicial       string `json:"horaInicial"`
	HoraFinal         string `json:"horaFinal"`

	Timestamp   time.Time  `json:"timestamp"` // check-in time, orders ties within a slot
	Status      string     `json:"status"`
	CalledAt    *time.Time `json:"calledAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Puesto is the station that called this patient, set on the
	// waiting -> called transition.
	Puesto int `json:"puesto,omitempty"`

	// Position is the 1-based rank in the waiting line. Recomputed on
	// every read, never authoritative.
	Position int `json:"position,omitempty"`
}

// SectorState is the per-sector view handed to the HTTP layer and the
// websocket displays. All patients are copies of the store's records.
type SectorState struct {
	Waiting []Patient `json:"waiting"`
	// Current is the most recently called patient still in "called"
	// status, kept for the single-panel displays.
	Current *Patient `json:"current"`
	// Called lists every currently-called patient across the sector's
	// puestos, ordered by puesto.
	Called []Patient `json:"calledPatients"`
	Recent []Patient `json:"recent"`
}

// State is the full snapshot pushed after every visible mutation.
type State struct {
	Sectors map[string]SectorState `json:"sectors"`
}
