package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"triagecopilot/internal/api"
)

var (
	serveAddr   string
	serveCorpus string
	serveLLM    bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the triage HTTP API",
	Long: `Serve starts the HTTP API: issue intake, analysis runs, reviewer
decisions, and guidance-document management.

Example:
  triagecopilot serve
  triagecopilot serve --addr :9090 --corpus ./guidance
  triagecopilot serve --llm --llm-provider openai --llm-model gpt-4o-mini`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveCorpus, "corpus", "", "guidance corpus directory (YAML files)")

	// LLM flags
	serveCmd.Flags().BoolVar(&serveLLM, "llm", false, "enable LLM refinement")
	serveCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	serveCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg, serveLLM)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	if err := c.loadCorpus(serveCorpus); err != nil {
		return err
	}

	handler := api.NewHandler(c.Store, c.Pipeline, c.Classifier, c.Retriever, cfg, c.Logger)
	srv := api.NewServer(cfg.Server.Addr, handler)

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		c.Logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
