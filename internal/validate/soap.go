package validate

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const soapEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:gxs="GXSalud">
   <soapenv:Header/>
   <soapenv:Body>
      <gxs:labwbs01.Execute>
         <gxs:Labosnro>%s</gxs:Labosnro>
      </gxs:labwbs01.Execute>
   </soapenv:Body>
</soapenv:Envelope>`

// horaFinal arrives date-qualified, e.g. "2024-03-05T09:20:00".
var horaFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type soapResponse struct {
	Body struct {
		Execute executeResponse `xml:"labwbs01.ExecuteResponse"`
	} `xml:"Body"`
}

type executeResponse struct {
	Error          string `xml:"Error"`
	ErrDescripcion string `xml:"Errdescripcion"`
	Nombre         string `xml:"Nombre"`
	Cedula         string `xml:"Cedula"`
	Digito         string `xml:"Digito"`
	Matricula      string `xml:"Matricula"`
	Usuario        string `xml:"Usuario"`
	Dependencia    string `xml:"Dependencia"`
	Depdescripcion string `xml:"Depdescripcion"`
	Sector         string `xml:"Sector"`
	Secdescripcion string `xml:"Secdescripcion"`
	Fecha          string `xml:"Fecha"`
	Horainicial    string `xml:"Horainicial"`
	Horafinal      string `xml:"Horafinal"`
}

// SOAPClient validates barcodes against the labwbs01 GXSalud service.
type SOAPClient struct {
	url    string
	client *http.Client
}

func NewSOAPClient(url string) *SOAPClient {
	return &SOAPClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SOAPClient) Validate(ctx context.Context, code string) (*Result, error) {
	envelope := fmt.Sprintf(soapEnvelope, code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("no se pudo crear la petición SOAP: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "labwbs01.Execute")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("no se pudo contactar el servicio SOAP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("el servicio SOAP respondió HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer la respuesta SOAP: %w", err)
	}

	var parsed soapResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("respuesta SOAP inválida: %w", err)
	}

	exec := parsed.Body.Execute

	if exec.Error == "S" {
		desc := exec.ErrDescripcion
		if desc == "" {
			desc = "Error desconocido"
		}
		return &Result{
			Valid:            false,
			Error:            "Error en el servicio",
			ErrorDescription: desc,
		}, nil
	}

	// Reject codes whose service window already closed.
	if horaFinal, ok := parseHora(exec.Horafinal); ok && time.Now().After(horaFinal) {
		return &Result{
			Valid:            false,
			Error:            "Turno vencido",
			ErrorDescription: fmt.Sprintf("El horario de atención finalizó a las %s", horaFinal.Format("15:04")),
		}, nil
	}

	if exec.Nombre == "" || exec.Sector == "" {
		return &Result{
			Valid:            false,
			Error:            "Datos incompletos",
			ErrorDescription: "La respuesta del servicio no contiene todos los datos necesarios",
		}, nil
	}

	slog.Debug("Código validado por SOAP", "code", code, "sector", exec.Sector)

	return &Result{
		Valid: true,
		Patient: &PatientData{
			Code:           code,
			Name:           exec.Nombre,
			Cedula:         atoiOrZero(exec.Cedula),
			Digito:         atoiOrZero(exec.Digito),
			Matricula:      atoiOrZero(exec.Matricula),
			Usuario:        atoiOrZero(exec.Usuario),
			Dependencia:    atoiOrZero(exec.Dependencia),
			DepDescripcion: exec.Depdescripcion,
			Sector:         atoiOrZero(exec.Sector),
			SecDescripcion: exec.Secdescripcion,
			Fecha:          exec.Fecha,
			HoraInicial:    exec.Horainicial,
			HoraFinal:      exec.Horafinal,
		},
	}, nil
}

func parseHora(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range horaFormats {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
