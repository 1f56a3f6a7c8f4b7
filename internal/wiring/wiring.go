// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/rootconf/internal/adapters/cache"
	_ "go.trai.ch/rootconf/internal/adapters/config"
	_ "go.trai.ch/rootconf/internal/adapters/executor"
	_ "go.trai.ch/rootconf/internal/adapters/fs"
	_ "go.trai.ch/rootconf/internal/adapters/logger"
	_ "go.trai.ch/rootconf/internal/adapters/telemetry"
	_ "go.trai.ch/rootconf/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/rootconf/internal/app"
	_ "go.trai.ch/rootconf/internal/engine/pipeline"
)
