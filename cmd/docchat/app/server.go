// Package app provides the DocChat server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/docchat/cmd/docchat/app/options"
	"github.com/kart-io/docchat/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "docchat"

	// commandDesc is the description of the command.
	commandDesc = `DocChat Service

Multimodal document question answering over PDF, DOCX and PPTX files.

This server provides:
  - Document ingestion with element extraction, chunking and summarization
  - Multi-vector retrieval joining summary embeddings with full element content
  - Streaming grounded answers with page citations and image context
  - Per-request LLM credentials (Gemini, Ollama)`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
