package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yourorg/apiprompt/internal/assistant"
	"github.com/yourorg/apiprompt/internal/config"
	"github.com/yourorg/apiprompt/internal/logging"
	"github.com/yourorg/apiprompt/internal/metrics"
	"github.com/yourorg/apiprompt/internal/prompt"
	"github.com/yourorg/apiprompt/internal/server"
	"github.com/yourorg/apiprompt/internal/store"
)

const defaultConfigContent = `store:
  path: ""

server:
  host: "127.0.0.1"
  port: 3000
  allowed_origins:
    - http://localhost:3000
    - http://127.0.0.1:3000
  api_tokens: []
  request_timeout: 30s

prompt:
  default_persona: "senior"

output:
  dir: "./output"

assistant:
  base_url: "https://api.openai.com/v1"
  api_key: ""
  model: "gpt-4o"
  max_tokens: 4096
  temperature: 0.2
  max_retries: 3
  timeout: 120s

log:
  level: "info"
  format: "auto"
  file: ""
  max_size_mb: 50
  max_backups: 3
  max_age_days: 28
`

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what commands share. Dependencies are built on first use so
// that commands like personas never touch the database.
type app struct {
	cfgPath string
	debug   bool

	cfg     *config.Config
	log     *slog.Logger
	logDone io.Closer
	metrics *metrics.Collector
	st      *store.SQLiteStore
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return nil, err
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a.cfg = cfg
	a.log, a.logDone = logging.New(cfg.Log, os.Stderr)
	a.metrics = metrics.NewCollector()
	return cfg, nil
}

func (a *app) store() (*store.SQLiteStore, error) {
	if a.st != nil {
		return a.st, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path, store.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	a.st = st
	return st, nil
}

func (a *app) generator() (*prompt.Generator, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return prompt.New(prompt.WithDefaultPersona(cfg.Prompt.DefaultPersona), prompt.WithRecorder(a.metrics)), nil
}

func (a *app) assistant() (*assistant.Client, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateAssistant(); err != nil {
		return nil, err
	}
	ac := cfg.Assistant
	return &assistant.Client{
		BaseURL:     ac.BaseURL,
		APIKey:      ac.APIKey,
		Model:       ac.Model,
		MaxTokens:   ac.MaxTokens,
		Temperature: ac.Temperature,
		MaxRetries:  ac.MaxRetries,
		HTTPClient:  &http.Client{Timeout: ac.Timeout},
		Logger:      a.log,
	}, nil
}

func (a *app) close() {
	if a.st != nil {
		_ = a.st.Close()
	}
	if a.logDone != nil {
		_ = a.logDone.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "apiprompt",
		Short:         "Describe API endpoints and turn them into prompts for coding assistants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newProjectCmd(a))
	root.AddCommand(newEndpointCmd(a))
	root.AddCommand(newSchemaCmd(a))
	root.AddCommand(newResponseCmd(a))
	root.AddCommand(newPromptCmd(a))
	root.AddCommand(newPersonasCmd())
	root.AddCommand(newExportCmd(a))
	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.apiprompt directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseDir, err := config.DefaultDir()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}

			cfgFile := filepath.Join(baseDir, "config.yaml")
			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(defaultConfigContent), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}

			dbPath := filepath.Join(baseDir, "apiprompt.db")
			s, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database ready", dbPath)
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{Use: "serve", Short: "Start the HTTP API and preview page", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := a.config()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = host
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		st, err := a.store()
		if err != nil {
			return err
		}
		gen, err := a.generator()
		if err != nil {
			return err
		}
		srv, err := server.New(cfg, st,
			server.WithLogger(a.log),
			server.WithGenerator(gen),
			server.WithMetrics(a.metrics),
		)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	}}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 3000, "server port")
	return cmd
}

func newPersonasCmd() *cobra.Command {
	return &cobra.Command{Use: "personas", Short: "List personas and preference labels", RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Personas:")
		for _, p := range prompt.Personas() {
			marker := " "
			if p.Key == prompt.DefaultPersona {
				marker = "*"
			}
			fmt.Fprintf(out, " %s %-13s %s\n", marker, p.Key, p.Name)
		}
		fmt.Fprintln(out, "Preferences:")
		for _, l := range prompt.PreferenceLabels() {
			fmt.Fprintf(out, "   %-16s %s\n", l.Key, l.Label)
		}
		return nil
	}}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func fdOf(w io.Writer) uintptr {
	if f, ok := w.(*os.File); ok {
		return f.Fd()
	}
	return ^uintptr(0)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
