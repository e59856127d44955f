package cmd

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcu-debug/mcu-debug-core/internal/config"
	"github.com/mcu-debug/mcu-debug-core/internal/portalloc"
	"github.com/mcu-debug/mcu-debug-core/internal/server"
	"github.com/mcu-debug/mcu-debug-core/internal/session"
	"github.com/mcu-debug/mcu-debug-core/internal/symbols"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run one DAP session over stdio, or listen for one over TCP with --port",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen on this TCP port for a single DAP connection instead of stdio")
	RootCmd.AddCommand(serveCmd)
}

// stdioConn adapts os.Stdin/os.Stdout to the io.ReadWriter session.Transport
// expects, the same shape the docker-buildx reference wires its DAP
// server to when not listening on a socket.
type stdioConn struct{}

func (stdioConn) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func runServe(cmd *cobra.Command, args []string) {
	logger := config.NewLogger(viper.GetBool("log"))

	if servePort == 0 {
		runSession(stdioConn{}, logger)
		return
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", servePort))
	if err != nil {
		logger.Error("mcu-debug: listen on port %d failed: %v", servePort, err)
		os.Exit(1)
	}
	defer ln.Close()
	logger.Verbosef("mcu-debug: listening on %s", ln.Addr())

	conn, err := ln.Accept()
	if err != nil {
		logger.Error("mcu-debug: accept failed: %v", err)
		os.Exit(1)
	}
	defer conn.Close()
	runSession(conn, logger)
}

func runSession(rw io.ReadWriter, logger *config.Logger) {
	transport := session.NewTransport(rw)
	ports := portalloc.New(portalloc.Config{})
	sess := session.New(transport, logger, server.Noop{}, symbols.Empty{}, ports)
	defer sess.Shutdown()

	if err := sess.Serve(); err != nil {
		logger.Error("mcu-debug: session ended: %v", err)
		os.Exit(1)
	}
}
