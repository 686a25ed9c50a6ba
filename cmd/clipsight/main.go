package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/clipsight/clipsight/internal/api"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/db"
	"github.com/clipsight/clipsight/internal/detect"
	"github.com/clipsight/clipsight/internal/janitor"
	"github.com/clipsight/clipsight/internal/jobs"
	"github.com/clipsight/clipsight/internal/media"
	"github.com/clipsight/clipsight/internal/progress"
	"github.com/clipsight/clipsight/internal/storage"
	"github.com/clipsight/clipsight/internal/transcript"
	"github.com/clipsight/clipsight/internal/version"
)

func main() {
	ver := version.Load()
	log.Printf("ClipSight %s starting...", ver.Version)

	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, "migrations"); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	cfg.MergeFromDB(database.DB)

	jobStore := progress.NewStore(cfg.RedisAddr)
	defer jobStore.Close()

	queue := jobs.NewQueue(cfg.RedisAddr, cfg.WorkerConcurrency)
	defer queue.Stop()

	srv := api.NewServer(cfg, database, jobStore, queue)

	orch := detect.NewOrchestrator(
		detectConfig(cfg),
		jobStore,
		storage.NewLocal(cfg.MediaDir),
		transcript.NewStore(),
		media.NewExtractor(cfg.FFmpegPath, cfg.FFprobePath),
		srv.HighlightRepo(),
		srv.WSHub(),
	)
	queue.RegisterHandler(jobs.TaskDetectHighlights, jobs.NewDetectHandler(orch, srv.VideoRepo(), jobStore))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := queue.Start(ctx); err != nil {
		log.Fatalf("job queue failed to start: %v", err)
	}

	jan := janitor.New(jobStore, srv.HighlightRepo())
	if err := jan.Start(); err != nil {
		log.Fatalf("janitor failed to start: %v", err)
	}
	defer jan.Stop()

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
}

func detectConfig(cfg *config.Config) detect.Config {
	dc := detect.DefaultConfig()
	if cfg.JobTimeoutMinutes > 0 {
		dc.Timeout = time.Duration(cfg.JobTimeoutMinutes) * time.Minute
	}
	return dc
}
