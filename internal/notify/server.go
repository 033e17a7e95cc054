package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is an in-process NATS server.
type EmbeddedServer struct {
	ns *server.Server

	startupTimeout time.Duration
	host           string
	port           int
	logger         *slog.Logger
}

// ServerOpt configures an EmbeddedServer.
type ServerOpt func(*EmbeddedServer)

// WithStartTimeout sets the startup timeout for the nats server
func WithStartTimeout(d time.Duration) ServerOpt {
	return func(n *EmbeddedServer) {
		n.startupTimeout = d
	}
}

// WithHost sets the host for the nats server
func WithHost(host string) ServerOpt {
	return func(n *EmbeddedServer) {
		n.host = host
	}
}

// WithPort sets the port for the nats server. -1 picks a random free port.
func WithPort(port int) ServerOpt {
	return func(n *EmbeddedServer) {
		n.port = port
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(l *slog.Logger) ServerOpt {
	return func(n *EmbeddedServer) {
		n.logger = l
	}
}

// NewEmbeddedServer creates a server listening on 127.0.0.1 and the default
// NATS port unless configured otherwise.
func NewEmbeddedServer(opts ...ServerOpt) (*EmbeddedServer, error) {
	s := &EmbeddedServer{
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
		port:           server.DEFAULT_PORT,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	ns, err := server.NewServer(&server.Options{
		Host:   s.host,
		Port:   s.port,
		NoSigs: true, // Let the application handle signals
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	s.ns = ns
	return s, nil
}

// Start runs the server and waits until it accepts connections.
func (n *EmbeddedServer) Start() error {
	n.ns.Start()

	if !n.ns.ReadyForConnections(n.startupTimeout) {
		return fmt.Errorf("nats server not ready for connections")
	}

	n.logger.Info("nats server listening", "addr", n.ns.Addr())
	return nil
}

// ClientURL returns the URL clients use to connect.
func (n *EmbeddedServer) ClientURL() string {
	return n.ns.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (n *EmbeddedServer) Shutdown() {
	n.ns.Shutdown()
	n.ns.WaitForShutdown()
}
