package validate

import (
	"context"
	"fmt"
	"time"
)

type mockEntry struct {
	name           string
	cedula         int
	digito         int
	sector         int
	secDescripcion string
	slotOffset     time.Duration // slot start relative to now
}

// Test codes for development installs, with staggered slots so the
// slot-based ordering is visible on the displays.
var mockPatients = map[string]mockEntry{
	"110007938": {name: "VESPA AMATI JUAN", cedula: 1171684, digito: 0, sector: 151, secDescripcion: "SECTOR A", slotOffset: 30 * time.Minute},
	"110007939": {name: "GARCÍA LÓPEZ MARÍA", cedula: 2345678, digito: 1, sector: 151, secDescripcion: "SECTOR A", slotOffset: -30 * time.Minute},
	"110007940": {name: "RODRÍGUEZ PÉREZ CARLOS", cedula: 3456789, digito: 2, sector: 152, secDescripcion: "SECTOR B", slotOffset: 15 * time.Minute},
	"110007941": {name: "FERNÁNDEZ SILVA ANA", cedula: 4567890, digito: 3, sector: 152, secDescripcion: "SECTOR B", slotOffset: 45 * time.Minute},
}

// MockValidator resolves a fixed set of codes without touching the
// network. Unknown codes come back as not found.
type MockValidator struct{}

func NewMockValidator() *MockValidator {
	return &MockValidator{}
}

func (m *MockValidator) Validate(_ context.Context, code string) (*Result, error) {
	entry, ok := mockPatients[code]
	if !ok {
		return &Result{
			Valid:            false,
			Error:            "Código no encontrado",
			ErrorDescription: fmt.Sprintf("El código %s no corresponde a ningún turno", code),
		}, nil
	}

	now := time.Now()
	start := now.Add(entry.slotOffset)
	end := start.Add(90 * time.Minute)

	return &Result{
		Valid: true,
		Patient: &PatientData{
			Code:           code,
			Name:           entry.name,
			Cedula:         entry.cedula,
			Digito:         entry.digito,
			Matricula:      100000 + entry.cedula%90000,
			Usuario:        entry.cedula,
			Dependencia:    1,
			DepDescripcion: "LABORATORIO CENTRAL",
			Sector:         entry.sector,
			SecDescripcion: entry.secDescripcion,
			Fecha:          now.Format("2006-01-02"),
			HoraInicial:    start.Format("2006-01-02T15:04:05"),
			HoraFinal:      end.Format("2006-01-02T15:04:05"),
		},
	}, nil
}
