package handlers

import (
	"time"

	"neoview/internal/archive"
	"neoview/internal/database"
	"neoview/internal/startup"
	"neoview/internal/thumbnailer"
)

type Handlers struct {
	store     *database.Store
	archives  *archive.Manager
	thumbs    *thumbnailer.Generator
	mediaDir  string
	startTime time.Time
}

func New(store *database.Store, archives *archive.Manager, thumbs *thumbnailer.Generator, config *startup.Config) *Handlers {
	return &Handlers{
		store:     store,
		archives:  archives,
		thumbs:    thumbs,
		mediaDir:  config.MediaDir,
		startTime: time.Now(),
	}
}
