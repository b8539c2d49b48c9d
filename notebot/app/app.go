// Package app wires configuration, storage, models and services into the
// controllers shared by the server and the local REPL.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"notebot/notebot/config"
	"notebot/notebot/controllers"
	"notebot/notebot/prompts"
	"notebot/notebot/services/analysis"
	"notebot/notebot/services/enrich"
	"notebot/notebot/services/llm"
	"notebot/notebot/services/search"
	"notebot/notebot/services/transcribe"
	"notebot/notebot/sources/db"
	"notebot/notebot/sources/db/dao"
	"notebot/notebot/sources/storage"
	"notebot/notebot/utils/logging"
)

type Provider struct {
	Config   config.Config
	Database *db.Database
	Models   *llm.Registry
	Notes    *controllers.NotesController
	Health   *controllers.HealthController
}

func New(ctx context.Context, cfg config.Config) (*Provider, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	database, err := db.NewDatabase(connectCtx, cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		database.Close()
		return nil, err
	}

	models := llm.NewRegistry(llm.LoadersFromConfig(cfg))
	templates := prompts.Load(cfg.PromptsFile)

	opts := controllers.NotesOptions{
		Enricher:    enrich.New(models, templates, cfg.ModelTimeout),
		Transcriber: transcribe.New(models, cfg.WhisperBeamSize, cfg.ModelTimeout),
		Searcher:    search.New(models, cfg.ModelTimeout),
		Analyzer:    analysis.New(models, templates, cfg.ModelTimeout),
	}
	if cfg.ArchiveEnabled() {
		archive, err := storage.NewVoiceArchive(connectCtx, cfg)
		if err != nil {
			logging.ErrorLogger.Error("minio connection error, voice archive disabled", zap.Error(err))
		} else {
			opts.Archive = archive
		}
	}

	return &Provider{
		Config:   cfg,
		Database: database,
		Models:   models,
		Notes:    controllers.NewNotesController(dao.NewNoteDAO(database.DB), opts),
		Health:   controllers.NewHealthController(sqlDB),
	}, nil
}

func (p *Provider) Close() {
	p.Database.Close()
}
