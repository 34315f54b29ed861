package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis-grc/api/handlers"
)

func (s *Server) buildRouter() chi.Router {
	h := s.newRouteHandlers()

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.requestLogMiddleware)
	r.Use(s.actorMiddleware)

	r.Route("/api", func(apiRouter chi.Router) {
		registerControls(apiRouter, h.controls)
		registerSoa(apiRouter, h.soa)
		registerDocs(apiRouter, h.docs)
		registerGaps(apiRouter, h.gaps)
		registerRisks(apiRouter, h.risks)
		registerTasks(apiRouter, h.tasks)

		apiRouter.MethodFunc("GET", "/logs", h.logs.List)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

func registerControls(apiRouter chi.Router, controls *handlers.ControlsHandler) {
	apiRouter.Route("/controls", func(controlsRouter chi.Router) {
		controlsRouter.MethodFunc("GET", "/", controls.List)
		controlsRouter.MethodFunc("POST", "/", controls.Create)
		controlsRouter.MethodFunc("DELETE", "/{id:[0-9]+}", controls.Delete)
	})
}

func registerSoa(apiRouter chi.Router, soa *handlers.SoaHandler) {
	apiRouter.Route("/soa", func(soaRouter chi.Router) {
		soaRouter.MethodFunc("GET", "/", soa.List)
		soaRouter.MethodFunc("POST", "/", soa.Create)
		soaRouter.MethodFunc("GET", "/{id:[0-9]+}", soa.Get)
		soaRouter.MethodFunc("PATCH", "/{id:[0-9]+}", soa.Update)
		soaRouter.MethodFunc("DELETE", "/{id:[0-9]+}", soa.Delete)
	})
}

func registerDocs(apiRouter chi.Router, docs *handlers.DocsHandler) {
	apiRouter.Route("/docs", func(docsRouter chi.Router) {
		docsRouter.MethodFunc("GET", "/", docs.List)
		docsRouter.MethodFunc("POST", "/", docs.Upload)
		docsRouter.MethodFunc("GET", "/{id:[0-9]+}", docs.Get)
		docsRouter.MethodFunc("DELETE", "/{id:[0-9]+}", docs.Delete)
	})
}

func registerGaps(apiRouter chi.Router, gaps *handlers.GapsHandler) {
	apiRouter.Route("/gaps", func(gapsRouter chi.Router) {
		gapsRouter.MethodFunc("GET", "/", gaps.List)
		gapsRouter.MethodFunc("DELETE", "/{id:[0-9]+}", gaps.Delete)
		gapsRouter.MethodFunc("GET", "/doc/{docId:[0-9]+}", gaps.GetByDoc)
		gapsRouter.MethodFunc("PATCH", "/doc/{docId:[0-9]+}", gaps.Upsert)
		gapsRouter.MethodFunc("POST", "/doc/{docId:[0-9]+}/check", gaps.Check)
		gapsRouter.MethodFunc("POST", "/doc/{docId:[0-9]+}/approve", gaps.Approve)
		gapsRouter.MethodFunc("POST", "/doc/{docId:[0-9]+}/reject", gaps.Reject)
	})
}

func registerRisks(apiRouter chi.Router, risks *handlers.RisksHandler) {
	apiRouter.Route("/risks", func(risksRouter chi.Router) {
		risksRouter.MethodFunc("GET", "/", risks.List)
		risksRouter.MethodFunc("POST", "/", risks.Create)
		risksRouter.MethodFunc("PUT", "/", risks.Save)
		risksRouter.MethodFunc("GET", "/{riskId}", risks.Get)
		risksRouter.MethodFunc("DELETE", "/{riskId}", risks.Delete)
	})

	apiRouter.Route("/risk-templates", func(templatesRouter chi.Router) {
		templatesRouter.MethodFunc("GET", "/", risks.ListTemplates)
		templatesRouter.MethodFunc("POST", "/", risks.CreateTemplate)
		templatesRouter.MethodFunc("DELETE", "/{id:[0-9]+}", risks.DeleteTemplate)
		templatesRouter.MethodFunc("POST", "/{id:[0-9]+}/accept", risks.AcceptTemplate)
	})

	apiRouter.MethodFunc("GET", "/dashboard", risks.Dashboard)
}

func registerTasks(apiRouter chi.Router, tasks *handlers.TasksHandler) {
	apiRouter.Route("/tasks", func(tasksRouter chi.Router) {
		tasksRouter.MethodFunc("GET", "/", tasks.List)
		tasksRouter.MethodFunc("POST", "/", tasks.Create)
		tasksRouter.MethodFunc("GET", "/{taskId}", tasks.Get)
		tasksRouter.MethodFunc("POST", "/{taskId}/complete", tasks.Complete)
		tasksRouter.MethodFunc("PATCH", "/{taskId}", tasks.Update)
		tasksRouter.MethodFunc("DELETE", "/{taskId}", tasks.Delete)
	})
}
