package display

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/model"
)

// Display renders the current status, keeps a local copy and pushes it to the tag.
type Display struct {
	renderer   *Renderer
	uploader   *Uploader
	outputPath string
	log        *zap.Logger
}

// New creates a Display from configuration.
func New(cfg config.DisplayConfig, log *zap.Logger) *Display {
	return &Display{
		renderer:   NewRenderer(),
		uploader:   NewUploader(cfg, log),
		outputPath: cfg.OutputPath,
		log:        log,
	}
}

// Update renders equipments and uploads the image.
func (d *Display) Update(ctx context.Context, equipments []model.Equipment) error {
	img := d.renderer.Render(equipments)
	data, err := EncodeJPEG(img)
	if err != nil {
		return err
	}

	if d.outputPath != "" {
		if err := os.WriteFile(d.outputPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", d.outputPath, err)
		}
	}

	d.log.Info("rendered display image",
		zap.Int("not_working", len(NotWorking(equipments))),
		zap.String("path", d.outputPath))

	if err := d.uploader.Upload(ctx, data); err != nil {
		return fmt.Errorf("failed to update display: %w", err)
	}
	d.log.Info("display updated", zap.String("tag", d.uploader.tag))
	return nil
}
