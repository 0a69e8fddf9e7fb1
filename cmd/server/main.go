package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/asesp/turnero/internal/config"
	"github.com/asesp/turnero/internal/nats"
	"github.com/asesp/turnero/internal/queue"
	"github.com/asesp/turnero/internal/snapshot"
	"github.com/asesp/turnero/internal/validate"
	"github.com/asesp/turnero/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("No se pudo cargar la configuración", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start embedded NATS server
	natsServer, err := nats.NewEmbeddedServer(cfg.DataDir)
	if err != nil {
		slog.Error("No se pudo iniciar el servidor NATS", "error", err)
		os.Exit(1)
	}
	defer natsServer.Shutdown()

	// Snapshot store backed by JetStream KV
	snaps, err := snapshot.NewKVStore(ctx, natsServer.JetStream())
	if err != nil {
		slog.Error("No se pudo crear el almacén de snapshots", "error", err)
		os.Exit(1)
	}

	// Queue store: restore last snapshot, then start the sweeps
	store := queue.NewStore(snaps)
	if err := store.Load(ctx); err != nil {
		slog.Warn("Snapshot no disponible, iniciando vacío", "error", err)
	}
	store.StartAutomaticCleanup()
	defer store.Close()

	// Upstream appointment validation
	var validator validate.Validator
	if cfg.UseProductionSOAP {
		validator = validate.NewSOAPClient(cfg.SoapURL)
		slog.Info("Validación SOAP de producción habilitada", "url", cfg.SoapURL)
	} else {
		validator = validate.NewMockValidator()
		slog.Info("Usando validación simulada para desarrollo")
	}

	// Create wait group for goroutines
	var wg sync.WaitGroup

	// Start web server
	webServer := web.NewServer(store, validator, natsServer.Connection(), cfg)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := webServer.Start(ctx); err != nil {
			slog.Error("Error del servidor web", "error", err)
		}
	}()

	slog.Info("Turnero iniciado",
		"webPort", cfg.WebPort,
		"dataDir", cfg.DataDir,
		"soapProduction", cfg.UseProductionSOAP,
	)

	printStartupInfo(cfg)

	// Wait for shutdown signal
	<-sigChan
	slog.Info("Señal de apagado recibida, cerrando...")

	// Cancel context to stop all services
	cancel()

	// Wait for all goroutines to finish
	wg.Wait()

	slog.Info("Turnero detenido")
}

func printStartupInfo(cfg *config.Config) {
	info := `
╔═══════════════════════════════════════════════════════════════╗
║                      Turnero Iniciado                         ║
╠═══════════════════════════════════════════════════════════════╣
║ Panel / API          : http://localhost:%-22d ║
║ Datos                : %-39s ║
║ Validación SOAP      : %-39s ║
╚═══════════════════════════════════════════════════════════════╝
`
	soap := "simulada (desarrollo)"
	if cfg.UseProductionSOAP {
		soap = cfg.SoapURL
	}

	fmt.Printf(info,
		cfg.WebPort,
		cfg.DataDir,
		soap,
	)
}
