package actions

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	c "github.com/relloyd/scdpipe/constants"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/stats"
)

type WebServerConfig struct {
	Run     RunConfig
	Addr    string `errorTxt:"address" mandatory:"no"`
	Port    int    `errorTxt:"port" mandatory:"yes"`
	DailyAt string // HH:MM in UTC for the scheduled run; empty disables the schedule
}

// runService runs one date at a time in the background.
type runService struct {
	log     logger.Logger
	runner  Runner
	ctx     context.Context // cancelled on shutdown
	mu      sync.Mutex      // held while a run is in progress
	wg      sync.WaitGroup
	lagDays int
	now     func() time.Time
}

func newRunService(ctx context.Context, log logger.Logger, runner Runner, lagDays int) *runService {
	return &runService{log: log, runner: runner, ctx: ctx, lagDays: lagDays, now: time.Now}
}

// launch starts a run of d in the background. It returns false when a run is already in progress.
func (s *runService) launch(d time.Time) bool {
	if !s.mu.TryLock() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		res, err := s.runner.Run(s.ctx, d)
		if err != nil {
			s.log.Error("run ", h.FormatDate(d), " failed: ", err)
			return
		}
		s.log.Info("run ", h.FormatDate(d), " finished in state ", res.State, " after ", res.Attempts, " attempt(s)")
	}()
	return true
}

// launchScheduled runs today minus the lag days.
func (s *runService) launchScheduled() {
	d := DefaultRunDate(s.now(), s.lagDays)
	if !s.launch(d) {
		s.log.Warn("skipping scheduled run of ", h.FormatDate(d), ": a run is already in progress")
	}
}

// wait blocks until the background run finishes or timeout elapses.
func (s *runService) wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// RunWebServer serves the HTTP API and the daily schedule until interrupted.
func RunWebServer(web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logger.NewWebLogger(c.ServiceName, web.Run.LogLevel, web.Run.StackDumpOnPanic, cancel)
	// Check if we have valid input params.
	err := h.ValidateStructIsPopulated(web)
	if err != nil {
		return err
	}
	metrics := stats.NewMetrics()
	p, err := NewPipeline(ctx, log, &web.Run, metrics)
	if err != nil {
		return err
	}
	defer p.Close()
	svc := newRunService(ctx, log, p.Orchestrator, web.Run.LagDays)
	scheduler, err := newScheduler(log, web.DailyAt, svc)
	if err != nil {
		return err
	}
	// Start the web server.
	chanStopServer := make(chan string, 1)
	srv := runServer(log, web, newRouter(log, svc, p.RunStore, metrics, chanStopServer))
	// Block & wait for completion.
	return waitForServer(log, srv, chanStopServer, scheduler, svc, cancel)
}

// newScheduler starts a gocron scheduler that launches the lagged run date every day at dailyAt.
// It returns nil when dailyAt is empty.
func newScheduler(log logger.Logger, dailyAt string, svc *runService) (*gocron.Scheduler, error) {
	if dailyAt == "" {
		log.Info("daily schedule disabled")
		return nil, nil
	}
	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(1).Day().At(dailyAt).Do(svc.launchScheduled); err != nil {
		return nil, errors.Wrapf(err, "bad daily schedule time %q", dailyAt)
	}
	s.StartAsync()
	log.Info("daily run scheduled at ", dailyAt, " UTC")
	return s, nil
}

func newRouter(log logger.Logger, svc *runService, runs RunLister, metrics *stats.Metrics, chanStopServer chan string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/stop", GetHandlerStopServer(log, chanStopServer)).Methods(http.MethodPost)
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/runs/{runDate}").Methods(http.MethodPost).HandlerFunc(GetHandlerRunLaunch(log, svc))
	r.Path("/runs/{runDate}").Methods(http.MethodGet).HandlerFunc(GetHandlerRunStatus(log, runs))
	r.Path("/metrics").Handler(metrics.Handler())
	return r
}

// runServer starts the HTTP server without blocking.
func runServer(log logger.Logger, web *WebServerConfig, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      handler,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on http://%v:%v", web.Addr, web.Port))
	return srv
}

func waitForServer(log logger.Logger, srv *http.Server, chanStopServer chan string, scheduler *gocron.Scheduler, svc *runService, cancel context.CancelFunc) error {
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt, syscall.SIGTERM)
	select {
	case <-chanStopServer:
	case <-chanOS:
	}
	log.Info("Shutting down web server...")
	if scheduler != nil {
		scheduler.Stop()
	}
	// A run in MERGING completes on its own context; earlier stages stop here.
	cancel()
	if !svc.wait(time.Minute) {
		log.Warn("gave up waiting for the active run to finish")
	}
	ctx, cancelShutdown := context.WithTimeout(context.Background(), time.Second*15)
	defer cancelShutdown()
	return srv.Shutdown(ctx)
}
