// Package nats runs the embedded NATS server used for two things: the
// JetStream KV bucket holding queue snapshots, and the internal
// pub/sub subject that fans queue-state updates out to the websocket
// hub.
package nats

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// SubjectQueueState carries the serialized queue state after every
// visible mutation.
const SubjectQueueState = "cola.estado"

type EmbeddedServer struct {
	server *server.Server
	nc     *nats.Conn
	js     jetstream.JetStream
}

func NewEmbeddedServer(dataDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		JetStream: true,
		StoreDir:  filepath.Join(dataDir, "nats-store"),
		Port:      -1, // random port, internal use only
		HTTPPort:  -1, // no HTTP monitoring
	}

	if err := os.MkdirAll(opts.StoreDir, 0755); err != nil {
		return nil, fmt.Errorf("no se pudo crear el directorio de datos: %w", err)
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("no se pudo crear el servidor NATS: %w", err)
	}

	ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("el servidor NATS no arrancó a tiempo")
	}

	slog.Info("Servidor NATS embebido iniciado", "clientURL", ns.ClientURL())

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("no se pudo conectar a NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("no se pudo iniciar JetStream: %w", err)
	}

	return &EmbeddedServer{
		server: ns,
		nc:     nc,
		js:     js,
	}, nil
}

func (es *EmbeddedServer) JetStream() jetstream.JetStream {
	return es.js
}

func (es *EmbeddedServer) Connection() *nats.Conn {
	return es.nc
}

func (es *EmbeddedServer) Shutdown() {
	if es.nc != nil {
		es.nc.Close()
	}
	if es.server != nil {
		es.server.Shutdown()
		es.server.WaitForShutdown()
	}
	slog.Info("Servidor NATS detenido")
}
