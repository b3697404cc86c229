package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/Softhook/elite-sub000/internal/storage/memory/export/v1"
)

var fileNameReplacer = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

// ExportedFilePath is the last export, empty before the first EndSession.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// exportName is <session>_<start>.json, with .gz when compressing.
func (b *Backend) exportName() string {
	name := fileNameReplacer.Replace(b.session.Name)
	if name == "" {
		name = "session"
	}
	name += "_" + b.session.StartTime.Format("20060102_150405") + ".json"
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return name
}

// exportJSON writes the session to OutputDir. Callers hold b.mu.
func (b *Backend) exportJSON() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, b.exportName())

	export := v1.Build(&v1.SessionData{
		Session:       b.session,
		Field:         b.field,
		Descriptors:   b.descriptors,
		Activations:   b.activations,
		Deactivations: b.deactivations,
		Destructions:  b.destructions,
		TickStats:     b.tickStats,
	})
	if err := writeExport(path, export, b.cfg.CompressOutput); err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

func writeExport(path string, export v1.Export, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing export: %w", cerr)
		}
	}()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer func() {
			if cerr := gz.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("finishing gzip stream: %w", cerr)
			}
		}()
		w = gz
	}
	if err := json.NewEncoder(w).Encode(export); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}
