package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"aegis-grc/api"
	"aegis-grc/config"
	"aegis-grc/core/compliance"
	"aegis-grc/core/docs"
	"aegis-grc/core/filestore"
	"aegis-grc/core/rbac"
	"aegis-grc/core/risks"
	"aegis-grc/core/soa"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
	"aegis-grc/core/workflow"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yml", "Path to the YAML config file")
	flag.Parse()

	logger := utils.NewLogger()
	if err := run(configPath, logger); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}

	files, err := filestore.NewDiskStore(cfg.Uploads.StorageDir)
	if err != nil {
		return err
	}
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		return err
	}

	controlsStore := store.NewControlsStore(db)
	docsStore := store.NewDocsStore(db)
	gapsStore := store.NewGapsStore(db)
	risksStore := store.NewRisksStore(db)
	tasksStore := store.NewTasksStore(db)
	audits := store.NewAuditStore(db)

	checker := compliance.NewChecker(docsStore, gapsStore, compliance.NewFileExtractor(cfg.Compliance), files, logger)
	scheduler := compliance.NewScheduler(cfg.Compliance, checker, logger)
	if err := scheduler.StartWithContext(ctx); err != nil {
		return err
	}
	defer scheduler.StopWithContext(context.Background())

	server := api.NewServer(api.ServerDeps{
		Cfg:      cfg,
		Logger:   logger,
		Soa:      soa.NewService(controlsStore, enforcer, audits, logger),
		Docs:     docs.NewService(docsStore, files, audits, logger),
		Risks:    risks.NewService(risksStore, enforcer, audits, logger),
		Workflow: workflow.NewService(docsStore, gapsStore, tasksStore, risksStore, checker, enforcer, audits, logger),
		Audits:   audits,
	})

	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
