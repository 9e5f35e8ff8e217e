package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer runs NATS inside the process. Used for single-binary
// deployments and tests.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbeddedServer starts a server on a random localhost port.
func StartEmbeddedServer() (*EmbeddedServer, error) {
	opts := &server.Options{
		Host: "127.0.0.1",
		Port: -1,
	}
	s, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready")
	}
	return &EmbeddedServer{server: s}, nil
}

// URL returns the client connection URL.
func (e *EmbeddedServer) URL() string {
	return e.server.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (e *EmbeddedServer) Shutdown() {
	e.server.Shutdown()
	e.server.WaitForShutdown()
}

// NewEmbedded starts an embedded server and connects a bus to it.
func NewEmbedded() (*EventBus, *EmbeddedServer, error) {
	srv, err := StartEmbeddedServer()
	if err != nil {
		return nil, nil, err
	}
	bus, err := New(Config{URL: srv.URL(), Name: "auriga-embedded"})
	if err != nil {
		srv.Shutdown()
		return nil, nil, err
	}
	return bus, srv, nil
}
