package executor

import (
	"context"

	"github.com/pelletier/go-toml/v2"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
)

// TOML returns the executor for .toml files. Keys are merged in sorted order.
func (x *Executors) TOML() session.Executor {
	return session.ExecutorFunc(x.applyTOML)
}

func (x *Executors) applyTOML(_ context.Context, s *session.Session, path string) error {
	entry, err := x.read(s, path)
	if err != nil {
		return err
	}

	var data map[string]any
	if err := toml.Unmarshal(entry.Content, &data); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrTOMLDecodeFailed), "path", path)
	}
	s.Data().Merge(data)
	return nil
}
