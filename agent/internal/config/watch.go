package config

import (
	"context"

	"github.com/sensordash/sensordash/pkg/confwatch"
)

// Watch calls onChange with the reloaded Config each time the file at path
// is written, until ctx is cancelled. Invalid reloads are logged and skipped.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return confwatch.Watch(ctx, path, Load, onChange)
}
