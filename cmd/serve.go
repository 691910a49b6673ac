package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jrklein8/ILMFoodNBrew/internal/config"
	"github.com/jrklein8/ILMFoodNBrew/internal/model"
	"github.com/jrklein8/ILMFoodNBrew/internal/monitoring"
	"github.com/jrklein8/ILMFoodNBrew/internal/pipeline"
	"github.com/jrklein8/ILMFoodNBrew/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the schedule API and refresh it on a timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		api := newAPIServer(ctx, cfg, env.Store, env.Pipeline)

		port := resolvePort(servePort, cfg.Server.Port)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.buildMux(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		checker := monitoring.NewChecker(api.collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return api.runScheduler(gCtx)
		})

		g.Go(func() error {
			checker.Run(gCtx)
			return nil
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort picks the listen port: flag beats config beats 8080.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort > 0 {
		return flagPort
	}
	if cfgPort > 0 {
		return cfgPort
	}
	return 8080
}

// apiServer serves the published dataset and run history, and owns the
// single-flight guard that keeps scheduled and manual scrapes from
// overlapping.
type apiServer struct {
	cfg       *config.Config
	store     store.Store
	pipe      *pipeline.Pipeline
	collector *monitoring.Collector
	loc       *time.Location

	// runCtx outlives individual requests; background scrapes started
	// by the refresh endpoint run under it so shutdown cancels them.
	runCtx context.Context
	busy   atomic.Bool
}

func newAPIServer(ctx context.Context, cfg *config.Config, st store.Store, p *pipeline.Pipeline) *apiServer {
	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		zap.L().Warn("invalid server timezone, using local",
			zap.String("timezone", cfg.Server.Timezone), zap.Error(err))
		loc = time.Local
	}
	return &apiServer{
		cfg:       cfg,
		store:     st,
		pipe:      p,
		collector: monitoring.NewCollector(st, cfg.Data.Path),
		loc:       loc,
		runCtx:    ctx,
	}
}

func (s *apiServer) buildMux() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/schedule", s.handleSchedule)
		r.Get("/appearances/today", s.handleToday)
		r.Get("/appearances/{date}", s.handleByDate)
		r.Get("/runs", s.handleRuns)
		r.Get("/history/{date}", s.handleHistory)
		r.Get("/status", s.handleStatus)
		r.Post("/refresh", s.handleRefresh)
	})
	return r
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSchedule returns the dataset artifact verbatim so API consumers
// see exactly what the scrape published.
func (s *apiServer) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	buf, err := os.ReadFile(s.cfg.Data.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no schedule scraped yet"})
			return
		}
		zap.L().Error("read dataset", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read schedule"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}

func (s *apiServer) handleToday(w http.ResponseWriter, _ *http.Request) {
	data, ok := s.loadDataset(w)
	if !ok {
		return
	}
	today := model.NewDate(time.Now().In(s.loc))
	writeJSON(w, http.StatusOK, appearancesOrEmpty(data.AppearancesOn(today)))
}

func (s *apiServer) handleByDate(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	data, ok := s.loadDataset(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, appearancesOrEmpty(data.AppearancesOn(date)))
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{Limit: limit})
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleHistory reads archived appearances from the store rather than
// the artifact, so past weeks stay queryable after the dataset moves on.
func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	apps, err := s.store.ListAppearancesByDate(r.Context(), date)
	if err != nil {
		zap.L().Error("list appearance history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list history"})
		return
	}
	writeJSON(w, http.StatusOK, appearancesOrEmpty(apps))
}

// handleStatus reports scraper health over the configured lookback window.
func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), s.cfg.Monitoring.LookbackWindowHours)
	if err != nil {
		zap.L().Error("collect status", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to collect status"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *apiServer) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if !s.busy.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a scrape is already in progress"})
		return
	}

	go func() {
		defer s.busy.Store(false)
		if s.pipe == nil {
			return
		}
		if _, err := s.pipe.Run(s.runCtx); err != nil {
			zap.L().Error("manual refresh failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// runScheduler refreshes the dataset on the configured interval until
// ctx is cancelled.
func (s *apiServer) runScheduler(ctx context.Context) error {
	if s.cfg.Scrape.OnStart {
		s.tryScrape(ctx, "startup")
	}

	ticker := time.NewTicker(s.cfg.Scrape.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tryScrape(ctx, "interval")
		}
	}
}

func (s *apiServer) tryScrape(ctx context.Context, trigger string) {
	if !s.busy.CompareAndSwap(false, true) {
		zap.L().Info("scrape already in flight, skipping", zap.String("trigger", trigger))
		return
	}
	defer s.busy.Store(false)

	if s.pipe == nil {
		return
	}
	if _, err := s.pipe.Run(ctx); err != nil {
		zap.L().Error("scheduled scrape failed",
			zap.String("trigger", trigger), zap.Error(err))
	}
}

func (s *apiServer) loadDataset(w http.ResponseWriter) (*model.ScrapedData, bool) {
	buf, err := os.ReadFile(s.cfg.Data.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no schedule scraped yet"})
			return nil, false
		}
		zap.L().Error("read dataset", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read schedule"})
		return nil, false
	}

	var data model.ScrapedData
	if err := json.Unmarshal(buf, &data); err != nil {
		zap.L().Error("parse dataset", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "dataset is corrupt"})
		return nil, false
	}
	return &data, true
}

func appearancesOrEmpty(apps []model.TruckAppearance) []model.TruckAppearance {
	if apps == nil {
		return []model.TruckAppearance{}
	}
	return apps
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
