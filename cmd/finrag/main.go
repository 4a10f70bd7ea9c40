// Command finrag serves grounded chat over holdings and trades CSVs.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/finrag/finrag-go/internal/adapters/embedding"
	"github.com/finrag/finrag-go/internal/adapters/filewatcher"
	"github.com/finrag/finrag-go/internal/adapters/llm"
	"github.com/finrag/finrag-go/internal/adapters/loader"
	"github.com/finrag/finrag-go/internal/adapters/session"
	"github.com/finrag/finrag-go/internal/adapters/vectordb"
	"github.com/finrag/finrag-go/internal/config"
	"github.com/finrag/finrag-go/internal/domain/ports"
	"github.com/finrag/finrag-go/internal/domain/usecases"
	httpserver "github.com/finrag/finrag-go/internal/infrastructure/http"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// .env is optional; the environment itself still applies.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("loading config")
	}

	embedder := embedding.NewOllamaAdapter(cfg.OllamaURL, cfg.EmbeddingModel, logger)
	generator := llm.NewOllamaAdapter(cfg.OllamaURL, cfg.LLMModel, cfg.MaxTokens, logger)

	var index ports.VectorIndex
	switch cfg.VectorStore {
	case "sqlite":
		sqliteIndex, err := vectordb.NewSQLiteIndex(cfg.DataPath, embedder, logger)
		if err != nil {
			logger.WithError(err).Fatal("opening sqlite index")
		}
		defer sqliteIndex.Close()
		index = sqliteIndex
	default:
		index = vectordb.NewMemoryIndex(embedder, logger)
	}

	source := loader.NewCSVSource(cfg.HoldingsCSV, cfg.TradesCSV)
	sessions := session.NewMemoryStore(cfg.MaxHistory)
	composer := usecases.NewComposer(generator, cfg.MaxHistory, time.Duration(cfg.GenerationTimeoutSecs)*time.Second)
	chat := usecases.NewChatUseCase(source, index, sessions, composer, logger, cfg.TopKDefault)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A failed initial load is fatal; a failed reload later keeps the
	// old corpus serving.
	if err := chat.Reload(ctx); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"holdings": cfg.HoldingsCSV,
			"trades":   cfg.TradesCSV,
		}).Fatal("loading data")
	}

	if cfg.WatchFiles {
		watcher, err := filewatcher.NewFSNotifyWatcher(logger)
		if err != nil {
			logger.WithError(err).Warn("file watching disabled")
		} else {
			defer watcher.Stop()
			go watchAndReload(ctx, watcher, source.Paths(), chat, logger)
		}
	}

	server := httpserver.NewServer(chat, sessions, logger, cfg.Addr)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
}

// watchAndReload reloads the corpus when a CSV changes, debouncing the
// burst of write events editors produce.
func watchAndReload(ctx context.Context, watcher ports.FileWatcher, paths []string, chat *usecases.ChatUseCase, logger *logrus.Logger) {
	changes, err := watcher.Watch(ctx, paths)
	if err != nil {
		logger.WithError(err).Warn("file watching disabled")
		return
	}

	var timer *time.Timer
	debounced := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-changes:
			if !ok {
				return
			}
			logger.WithField("path", path).Info("data file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(500*time.Millisecond, func() {
				select {
				case debounced <- struct{}{}:
				default:
				}
			})
		case <-debounced:
			if err := chat.Reload(ctx); err != nil {
				logger.WithError(err).Error("reload after file change failed")
			}
		}
	}
}
