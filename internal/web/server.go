package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"

	"github.com/asesp/turnero/internal/config"
	internalnats "github.com/asesp/turnero/internal/nats"
	"github.com/asesp/turnero/internal/queue"
	"github.com/asesp/turnero/internal/validate"
)

// Server is the HTTP surface over the queue engine. Handlers hold no
// queue logic: they check the caller contract (duplicate codes), call
// into the store and publish the fresh snapshot.
type Server struct {
	echo      *echo.Echo
	store     *queue.Store
	validator validate.Validator
	nc        *nats.Conn
	hub       *Hub
	config    *config.Config
}

func NewServer(store *queue.Store, validator validate.Validator, nc *nats.Conn, cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	return &Server{
		echo:      e,
		store:     store,
		validator: validator,
		nc:        nc,
		hub:       NewHub(),
		config:    cfg,
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.setupRoutes()

	go s.hub.Run(ctx)

	// Every mutation point publishes once to NATS; the hub relays to
	// the websocket displays.
	if s.nc != nil {
		sub, err := s.nc.Subscribe(internalnats.SubjectQueueState, func(msg *nats.Msg) {
			s.hub.Broadcast(msg.Data)
		})
		if err != nil {
			return fmt.Errorf("no se pudo suscribir a %s: %w", internalnats.SubjectQueueState, err)
		}
		defer sub.Unsubscribe()
	}

	addr := fmt.Sprintf(":%d", s.config.WebPort)
	slog.Info("Servidor web iniciando", "port", s.config.WebPort)

	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("Error del servidor web", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/validate", s.handleValidate)

	q := api.Group("/queue")
	q.POST("/next", s.handleCallNext)
	q.POST("/attending", s.handleAttending)
	q.GET("/state", s.handleState)
	q.GET("/state/:sectorId", s.handleSectorState)
	q.GET("/sectors", s.handleSectors)
	q.POST("/cleanup", s.handleCleanup)
	q.POST("/reset", s.handleReset)
	q.POST("/reset/:sectorId", s.handleResetSector)
	q.GET("/export", s.handleExport)
	q.POST("/import", s.handleImport)

	s.echo.GET("/ws", s.handleWS)
}

// publishState pushes the current snapshot to NATS so every display
// repaints.
func (s *Server) publishState() {
	if s.nc == nil {
		return
	}
	data, err := json.Marshal(s.store.GetState())
	if err != nil {
		slog.Error("No se pudo serializar el estado", "error", err)
		return
	}
	if err := s.nc.Publish(internalnats.SubjectQueueState, data); err != nil {
		slog.Error("No se pudo publicar el estado", "error", err)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	components := make(map[string]string)
	status := "healthy"

	if s.nc != nil && s.nc.IsConnected() {
		components["nats"] = "healthy"
	} else {
		components["nats"] = "unhealthy: sin conexión"
		status = "degraded"
	}
	components["store"] = fmt.Sprintf("healthy (sectors: %d)", len(s.store.Sectors()))

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now(),
		"components": components,
		"version":    "1.0.0",
	})
}

type validateRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleValidate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Código inválido",
		})
	}

	// Caller-side duplicate check; the store does not re-check.
	if s.store.HasPatient(req.Code) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   "Este código ya está en la cola",
			"patient": s.store.GetPatientByCode(req.Code),
		})
	}

	result, err := s.validator.Validate(c.Request().Context(), req.Code)
	if err != nil {
		slog.Error("Fallo de validación externa", "code", req.Code, "error", err)
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":            "Servicio no disponible",
			"errorDescription": "No se pudo conectar con el servidor. Intente nuevamente.",
		})
	}

	if !result.Valid {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":            result.Error,
			"errorDescription": result.ErrorDescription,
		})
	}

	d := result.Patient
	patient := s.store.AddPatient(queue.Patient{
		Code:              d.Code,
		Name:              d.Name,
		Cedula:            fmt.Sprintf("%d-%d", d.Cedula, d.Digito),
		Matricula:         strconv.Itoa(d.Matricula),
		Usuario:           strconv.Itoa(d.Usuario),
		Dependencia:       fmt.Sprintf("%d - %s", d.Dependencia, d.DepDescripcion),
		Sector:            strconv.Itoa(d.Sector),
		SectorDescription: d.SecDescripcion,
		Fecha:             d.Fecha,
		HoraInicial:       d.HoraInicial,
		HoraFinal:         d.HoraFinal,
	})

	s.publishState()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"patient": patient,
		"sector":  d.SecDescripcion,
		"message": fmt.Sprintf("Paciente agregado al %s", d.SecDescripcion),
	})
}

type callNextRequest struct {
	SectorID string `json:"sectorId"`
	Puesto   int    `json:"puesto"`
}

func (s *Server) handleCallNext(c echo.Context) error {
	var req callNextRequest
	if err := c.Bind(&req); err != nil || req.SectorID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Sector requerido",
		})
	}
	if req.Puesto <= 0 {
		req.Puesto = 1
	}

	patient := s.store.CallNext(req.SectorID, req.Puesto)
	if patient == nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "No hay pacientes en espera en este sector",
		})
	}

	s.publishState()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"patient": patient,
	})
}

type attendingRequest struct {
	PatientID string `json:"patientId"`
}

func (s *Server) handleAttending(c echo.Context) error {
	var req attendingRequest
	if err := c.Bind(&req); err != nil || req.PatientID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Paciente requerido",
		})
	}

	if !s.store.MarkAttending(req.PatientID) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"success": false,
			"error":   "El paciente no está en estado llamado",
		})
	}

	s.publishState()
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.GetState())
}

func (s *Server) handleSectorState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.GetSectorState(c.Param("sectorId")))
}

func (s *Server) handleSectors(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sectors": s.store.Sectors(),
	})
}

func (s *Server) handleCleanup(c echo.Context) error {
	s.store.ForceCleanup()
	s.publishState()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Limpieza forzada ejecutada correctamente",
	})
}

func (s *Server) handleReset(c echo.Context) error {
	s.store.Reset()
	s.publishState()
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleResetSector(c echo.Context) error {
	s.store.ResetSector(c.Param("sectorId"))
	s.publishState()
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleExport(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.ExportState())
}

// handleImport replaces the state wholesale. The payload is trusted
// as-is; it exists for operational backup/restore.
func (s *Server) handleImport(c echo.Context) error {
	var snap queue.Snapshot
	if err := c.Bind(&snap); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Snapshot inválido",
		})
	}
	s.store.ImportState(snap)
	s.publishState()
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleWS(c echo.Context) error {
	initial, err := json.Marshal(s.store.GetState())
	if err != nil {
		initial = nil
	}
	return s.hub.ServeWS(c, initial)
}
