package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwalitptl/queue-api/pkg/logger"
)

// StagedUploadPattern matches the files the import handler stages.
const StagedUploadPattern = "import-*"

type UploadSweeperConfig struct {
	Dir      string
	Interval time.Duration
	MaxAge   time.Duration
}

// UploadSweeper removes staged import files that outlived their request,
// for instance after a crash between staging and the deferred removal.
type UploadSweeper struct {
	config UploadSweeperConfig
	logger *logger.Logger
	now    func() time.Time
}

// ErrNoUploadDir is returned when the sweeper is given no directory; it never
// falls back to the shared temp dir.
var ErrNoUploadDir = errors.New("upload sweeper requires a dedicated directory")

func NewUploadSweeper(config UploadSweeperConfig, log *logger.Logger) (*UploadSweeper, error) {
	if strings.TrimSpace(config.Dir) == "" {
		return nil, ErrNoUploadDir
	}
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.MaxAge <= 0 {
		config.MaxAge = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UploadSweeper{config: config, logger: log, now: time.Now}, nil
}

func (w *UploadSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := w.Sweep()
			if err != nil {
				w.logger.Error(err, "upload sweep failed", "dir", w.config.Dir)
				continue
			}
			if removed > 0 {
				w.logger.Info("removed stale uploads", "count", removed, "dir", w.config.Dir)
			}
		}
	}
}

// Sweep deletes staged uploads older than MaxAge and reports how many went.
func (w *UploadSweeper) Sweep() (int, error) {
	matches, err := filepath.Glob(filepath.Join(w.config.Dir, StagedUploadPattern))
	if err != nil {
		return 0, fmt.Errorf("failed to list staged uploads: %w", err)
	}

	cutoff := w.now().Add(-w.config.MaxAge)
	removed := 0
	var errs []error
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
