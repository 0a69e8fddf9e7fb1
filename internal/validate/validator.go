// Package validate resolves a scanned barcode against the GXSalud
// appointment service. The production client speaks SOAP; a mock with
// fixed codes serves development installs.
package validate

import "context"

// PatientData is the appointment record returned by the upstream
// service for a valid code.
type PatientData struct {
	Code           string
	Name           string
	Cedula         int
	Digito         int
	Matricula      int
	Usuario        int
	Dependencia    int
	DepDescripcion string
	Sector         int
	SecDescripcion string
	Fecha          string
	HoraInicial    string
	HoraFinal      string
}

// Result is a resolved validation. Rejections (unknown code, expired
// window, incomplete data) are ordinary results, not errors; the error
// return of Validate is reserved for transport failures.
type Result struct {
	Valid            bool
	Error            string
	ErrorDescription string
	Patient          *PatientData
}

type Validator interface {
	Validate(ctx context.Context, code string) (*Result, error)
}
