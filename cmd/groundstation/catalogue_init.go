package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/kstaniek/groundstation/internal/catalogue"
)

// loadCatalogue reads cfg.catalogueFile if present and replays every
// format through Catalogue.Register via Load. A missing file is not an
// error: the process starts with an empty catalogue. A malformed file
// fails closed per persist.Load's contract: the error is logged and the
// catalogue carries whatever formats did parse.
func loadCatalogue(cfg *appConfig, l *slog.Logger) *catalogue.Catalogue {
	cat := catalogue.New()
	f, err := os.Open(cfg.catalogueFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.Error("catalogue_open_error", "path", cfg.catalogueFile, "error", err)
		}
		return cat
	}
	defer f.Close()
	if err := cat.Load(f); err != nil {
		l.Error("catalogue_load_error", "path", cfg.catalogueFile, "error", err)
	}
	return cat
}

// saveCatalogue writes every registered format back to cfg.catalogueFile,
// truncating and overwriting it in place (no atomic rename). A failed
// write is returned to the caller so shutdown can log it.
func saveCatalogue(cfg *appConfig, cat *catalogue.Catalogue) error {
	f, err := os.Create(cfg.catalogueFile)
	if err != nil {
		return err
	}
	defer f.Close()
	return cat.Save(f)
}
