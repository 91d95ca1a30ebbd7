package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

type stdio struct{}

func (stdio) Read(p []byte) (n int, err error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (n int, err error) { return os.Stdout.Write(p) }
func (stdio) Close() error                      { return nil }

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the language server over stdio (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Level())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	server := newServer(cfg, logger)

	var rw io.ReadWriteCloser = stdio{}
	stream := jsonrpc2.NewStream(rw)
	conn := jsonrpc2.NewConn(stream)

	// Set the connection in the server so it can send notifications
	server.SetConnection(conn)

	logger.Info("serving on stdio", zap.Strings("suffixes", cfg.FileSuffixes))
	go conn.Go(cmd.Context(), server.Handler())
	<-conn.Done()
	if err := conn.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
