package app

import (
	"context"
	"fmt"

	"github.com/vk/townpack/internal/ctxlog"
)

// Run executes the configured stage.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger.With("town", a.config.Town))
	a.logger.Debug("App.Run method started.", "stage", a.config.Stage)

	var err error
	switch a.config.Stage {
	case StageGenerate:
		_, err = a.Generate(ctx)
	case StagePack:
		_, err = a.Pack(ctx)
	default:
		err = fmt.Errorf("unknown stage %q", a.config.Stage)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", a.config.Stage, err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}
