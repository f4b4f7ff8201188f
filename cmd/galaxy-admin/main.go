package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/galaxy-admin/internal/api"
	"github.com/pavelanni/galaxy-admin/internal/handler"
	appI18n "github.com/pavelanni/galaxy-admin/internal/i18n"
	"github.com/pavelanni/galaxy-admin/internal/llm"
	"github.com/pavelanni/galaxy-admin/internal/model"
	"github.com/pavelanni/galaxy-admin/internal/store"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	// Values from a local .env file act as defaults for GALAXY_ADMIN_* variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: load .env: %v\n", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "galaxy-admin",
		Short: "Admin console for authoring subjects and lessons on the learning platform",
	}

	serve := serveCmd()
	root.AddCommand(serve, subjectsCmd(), lessonsCmd(), imagesCmd(), historyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `galaxy-admin --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web console",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addRemoteFlags(f)
	addAIFlags(f)
	f.String("journal", "", "SQLite submission journal path (empty disables the journal)")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /admin)")
	f.Bool("secure-cookies", true, "Set Secure flag on console cookies")
	f.Bool("strict-answers", false, "Require each correct answer to be one of its options")
	f.Duration("session-ttl", 0, "Idle lifetime of a console draft (0 = 12h)")
	f.Int64("max-upload-size", 10<<20, "Max bytes accepted per form submission")
	addLogFlags(f)
	return cmd
}

func addRemoteFlags(f *pflag.FlagSet) {
	f.String("api-url", "http://localhost:5000", "Learning platform API base URL")
	f.Duration("timeout", 0, "Per-request timeout for platform API calls (0 = none)")
}

func addAIFlags(f *pflag.FlagSet) {
	f.String("ai-backend", "remote", "Lesson generator: remote (platform endpoint) or llm (OpenAI-compatible API)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Int("ai-questions", 5, "Questions per generated lesson (llm backend only)")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GALAXY_ADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("galaxy-admin")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/galaxy-admin")
	v.AddConfigPath("/etc/galaxy-admin")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func newRemote(v *viper.Viper) *api.Client {
	return api.New(v.GetString("api-url"), api.WithTimeout(v.GetDuration("timeout")))
}

// newGenerator picks the lesson generator named by --ai-backend.
func newGenerator(ctx context.Context, v *viper.Viper, remote *api.Client) (handler.Generator, error) {
	switch backend := strings.ToLower(strings.TrimSpace(v.GetString("ai-backend"))); backend {
	case "", "remote":
		return remote, nil
	case "llm":
		c, err := llm.New(
			v.GetString("llm-url"),
			v.GetString("llm-key"),
			v.GetString("llm-model"),
			v.GetInt("ai-questions"),
		)
		if err != nil {
			return nil, fmt.Errorf("create LLM client: %w", err)
		}
		if err := c.Ping(ctx); err != nil {
			return nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		return c, nil
	default:
		return nil, fmt.Errorf("unknown ai-backend %q (want remote or llm)", backend)
	}
}

// openJournal opens the submission journal, or returns nil when path is empty.
func openJournal(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openJournal(v.GetString("journal"))
	if err != nil {
		return err
	}
	var journal handler.Journal
	if db != nil {
		defer db.Close()
		journal = db
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	remote := newRemote(v)
	gen, err := newGenerator(ctx, v, remote)
	if err != nil {
		return err
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ConsoleConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		StrictAnswers: v.GetBool("strict-answers"),
		SessionTTL:    v.GetDuration("session-ttl"),
		MaxUploadSize: v.GetInt64("max-upload-size"),
	}

	h, err := handler.New(remote, gen, journal, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	go h.SweepSessions(ctx, sessionSweepInterval)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting console",
		"addr", addr,
		"api_url", remote.BaseURL(),
		"ai_backend", v.GetString("ai-backend"),
		"journal", v.GetString("journal"),
		"lang", lang,
		"base_path", basePath,
		"strict_answers", cfg.StrictAnswers,
	)
	return http.ListenAndServe(addr, r)
}
