package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aegis-grc/api/handlers"
	"aegis-grc/config"
	"aegis-grc/core/docs"
	"aegis-grc/core/risks"
	"aegis-grc/core/soa"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
	"aegis-grc/core/workflow"
)

type ServerDeps struct {
	Cfg      *config.AppConfig
	Logger   *utils.Logger
	Soa      *soa.Service
	Docs     *docs.Service
	Risks    *risks.Service
	Workflow *workflow.Service
	Audits   store.AuditStore
}

type Server struct {
	cfg      *config.AppConfig
	logger   *utils.Logger
	soa      *soa.Service
	docs     *docs.Service
	risks    *risks.Service
	workflow *workflow.Service
	audits   store.AuditStore

	router chi.Router
	http   *http.Server
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		cfg:      deps.Cfg,
		logger:   deps.Logger,
		soa:      deps.Soa,
		docs:     deps.Docs,
		risks:    deps.Risks,
		workflow: deps.Workflow,
		audits:   deps.Audits,
	}
	s.router = s.buildRouter()
	return s
}

type routeHandlers struct {
	controls *handlers.ControlsHandler
	soa      *handlers.SoaHandler
	docs     *handlers.DocsHandler
	gaps     *handlers.GapsHandler
	risks    *handlers.RisksHandler
	tasks    *handlers.TasksHandler
	logs     *handlers.LogsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		controls: handlers.NewControlsHandler(s.soa, s.logger),
		soa:      handlers.NewSoaHandler(s.soa, s.logger),
		docs:     handlers.NewDocsHandler(s.docs, s.cfg.Uploads.UploadMaxBytes, s.logger),
		gaps:     handlers.NewGapsHandler(s.workflow, s.logger),
		risks:    handlers.NewRisksHandler(s.risks, s.logger),
		tasks:    handlers.NewTasksHandler(s.workflow, s.logger),
		logs:     handlers.NewLogsHandler(s.audits),
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.logger.Printf("listening on %s", s.cfg.ListenAddr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
