package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rootconf/internal/adapters/cache"     //nolint:depguard // Wired in app layer
	"go.trai.ch/rootconf/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/rootconf/internal/adapters/executor"  //nolint:depguard // Wired in app layer
	"go.trai.ch/rootconf/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/rootconf/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/rootconf/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/rootconf/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/engine/pipeline"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components groups the objects the command line needs.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fs.FileSystemNodeID,
			cache.DirCacheNodeID,
			cache.FileCacheNodeID,
			executor.NodeID,
			pipeline.NodeID,
			watcher.NodeID,
			logger.NodeID,
			telemetry.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[*config.Loader](ctx)
	if err != nil {
		return nil, err
	}

	fsys, err := graft.Dep[ports.FileSystem](ctx)
	if err != nil {
		return nil, err
	}

	dirs, err := graft.Dep[*cache.DirCache](ctx)
	if err != nil {
		return nil, err
	}

	files, err := graft.Dep[*cache.FileCache](ctx)
	if err != nil {
		return nil, err
	}

	execs, err := graft.Dep[*executor.Executors](ctx)
	if err != nil {
		return nil, err
	}

	engine, err := graft.Dep[*pipeline.Engine](ctx)
	if err != nil {
		return nil, err
	}

	w, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, fsys, dirs, files, execs, engine, w, log, tracer), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    app,
		Logger: log,
	}, nil
}
