package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"chatshell/internal/chat"
	"chatshell/internal/config"
	"chatshell/internal/generator"
	"chatshell/internal/kv"
	"chatshell/internal/session"
	"chatshell/internal/watch"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("chatshell: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("chatshell", flag.ExitOnError)
	storeFlag := fs.String("store", "", "Storage backend: file, sqlite, memory, none (default from config, else file)")
	dataFlag := fs.String("data", "", "Data directory (default from config)")
	providerFlag := fs.String("provider", "", "Generator provider: mock, anthropic, openai, ollama")
	modelFlag := fs.String("model", "", "Model name override")
	resumeFlag := fs.String("resume", "", "Session id to resume")
	listFlag := fs.Bool("list", false, "Print recent conversations and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	mgr, err := config.NewManager()
	if err != nil {
		return err
	}
	cfg, err := mgr.Load()
	if err != nil {
		return err
	}
	if *storeFlag != "" {
		cfg.Store = *storeFlag
	}
	if *dataFlag != "" {
		cfg.DataDir = *dataFlag
	}
	if *providerFlag != "" {
		cfg.Provider = *providerFlag
	}
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if cfg.DataDir == "" {
		cfg.DataDir = mgr.DefaultDataDir()
	}

	env, err := buildEnv(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	if *listFlag {
		printRecent(env.store)
		return nil
	}

	shell := newShell(env)
	return shell.loop(*resumeFlag)
}

// runtimeEnv holds everything the shell needs, built once at startup.
type runtimeEnv struct {
	logger   *slog.Logger
	store    *session.Store
	notifier *chat.Notifier
	machine  *chat.Machine

	closers []func() error
}

func (e *runtimeEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close failed", "error", err)
		}
	}
}

func buildEnv(cfg *config.Config) (*runtimeEnv, error) {
	logger, err := initLogger(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	env := &runtimeEnv{logger: logger, notifier: chat.NewNotifier()}

	backend, err := buildBackend(cfg, env)
	if err != nil {
		return nil, err
	}

	var search *session.SearchIndex
	if cfg.Store == "" || cfg.Store == "file" || cfg.Store == "sqlite" {
		idx, err := session.OpenSearchIndex(filepath.Join(cfg.DataDir, "transcripts.bleve"))
		if err != nil {
			logger.Warn("transcript search disabled", "error", err)
		} else {
			search = idx
			env.closers = append(env.closers, idx.Close)
		}
	}

	env.store = session.NewStore(backend, search, logger)

	gen, err := generator.Build(generator.Options{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	env.machine = chat.NewMachine(env.store, gen, env.notifier, logger)
	return env, nil
}

func buildBackend(cfg *config.Config, env *runtimeEnv) (kv.Store, error) {
	switch cfg.Store {
	case "", "file":
		dir := filepath.Join(cfg.DataDir, "sessions")
		backend, err := kv.NewFile(dir)
		if err != nil {
			return nil, err
		}
		// Refresh the listing when another process touches the store.
		watcher, err := watch.NewStoreWatcher(dir, env.notifier.Notify, env.logger)
		if err != nil {
			env.logger.Warn("store watcher disabled", "error", err)
		} else if err := watcher.Start(); err != nil {
			env.logger.Warn("store watcher disabled", "error", err)
		} else {
			env.closers = append(env.closers, watcher.Stop)
		}
		return backend, nil

	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		backend, err := kv.NewSQLite(filepath.Join(cfg.DataDir, "sessions.db"))
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, backend.Close)
		return backend, nil

	case "memory":
		return kv.NewMemory(), nil

	case "none":
		// No persistence collaborator in this environment; the engine
		// degrades to in-memory conversations with no history.
		return kv.Unavailable{}, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: file, sqlite, memory, none)", cfg.Store)
	}
}

// initLogger sets up structured logging with rotation. The shell owns
// stdout, so logs go to a file only.
func initLogger(dataDir string) (*slog.Logger, error) {
	logDir := filepath.Join(dataDir, "log")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "chatshell.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotating, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

func printRecent(store *session.Store) {
	entries := store.ListRecent()
	if len(entries) == 0 {
		fmt.Println("no recent conversations")
		return
	}
	for _, e := range entries {
		last := e.LastMessage
		if len(last) > 60 {
			last = last[:60] + "..."
		}
		fmt.Printf("%s  %s\n", e.ID, last)
	}
}
