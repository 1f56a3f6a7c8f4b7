package cache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rootconf/internal/adapters/fs"
	"go.trai.ch/rootconf/internal/adapters/logger"
	"go.trai.ch/rootconf/internal/core/ports"
)

const (
	// DirCacheNodeID is the unique identifier for the directory cache Graft node.
	DirCacheNodeID graft.ID = "adapter.cache.dir"
	// FileCacheNodeID is the unique identifier for the file cache Graft node.
	FileCacheNodeID graft.ID = "adapter.cache.file"
)

func init() {
	graft.Register(graft.Node[*DirCache]{
		ID:        DirCacheNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.FileSystemNodeID},
		Run: func(ctx context.Context) (*DirCache, error) {
			fsys, err := graft.Dep[ports.FileSystem](ctx)
			if err != nil {
				return nil, err
			}
			return NewDirCache(fsys), nil
		},
	})

	graft.Register(graft.Node[*FileCache]{
		ID:        FileCacheNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.FileSystemNodeID, logger.NodeID},
		Run: func(ctx context.Context) (*FileCache, error) {
			fsys, err := graft.Dep[ports.FileSystem](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewFileCache(fsys, log), nil
		},
	})
}
