package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	pkgconfig "github.com/abgdnv/bazaar/pkg/config"
)

// Probes keeps the files the kubelet exec probes look for. The readiness file exists once the
// servers are up; the liveness file is touched every interval while the process runs.
type Probes struct {
	cfg    pkgconfig.ProbesConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewProbes(cfg pkgconfig.ProbesConfig, logger *slog.Logger) *Probes {
	return &Probes{cfg: cfg, logger: logger.With("component", "probes"), now: time.Now}
}

// Ready creates the readiness file.
func (p *Probes) Ready() error {
	if err := p.touch(p.cfg.ReadinessFileName); err != nil {
		return fmt.Errorf("failed to write readiness file: %w", err)
	}
	return nil
}

// Run touches the liveness file until ctx is done, then removes both files.
func (p *Probes) Run(ctx context.Context) error {
	defer p.remove()

	ticker := time.NewTicker(p.cfg.LivenessInterval)
	defer ticker.Stop()
	for {
		if err := p.touch(p.cfg.LivenessFileName); err != nil {
			p.logger.WarnContext(ctx, "Failed to touch liveness file", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Probes) touch(name string) error {
	now := p.now()
	err := os.Chtimes(name, now, now)
	if errors.Is(err, fs.ErrNotExist) {
		return os.WriteFile(name, nil, 0o644)
	}
	return err
}

func (p *Probes) remove() {
	for _, name := range []string{p.cfg.ReadinessFileName, p.cfg.LivenessFileName} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("Failed to remove probe file", "file", name, "error", err)
		}
	}
}
