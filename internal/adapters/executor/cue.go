package executor

import (
	"context"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
)

// CUE returns the executor for .cue files. The file must evaluate to a concrete
// struct; fields are merged in declaration order.
func (x *Executors) CUE() session.Executor {
	return session.ExecutorFunc(x.applyCUE)
}

func (x *Executors) applyCUE(_ context.Context, s *session.Session, path string) error {
	entry, err := x.read(s, path)
	if err != nil {
		return err
	}

	v := cuecontext.New().CompileBytes(entry.Content, cue.Filename(path))
	if err := v.Err(); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrCUEDecodeFailed), "path", path)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrCUEDecodeFailed), "path", path)
	}
	if v.Kind() != cue.StructKind {
		return domain.With(domain.ErrNotAnObject, "path", path)
	}

	data, err := cueStruct(v)
	if err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrCUEDecodeFailed), "path", path)
	}
	s.Data().MergeStore(data)
	return nil
}

func cueStruct(v cue.Value) (*domain.Store, error) {
	it, err := v.Fields()
	if err != nil {
		return nil, err
	}
	st := domain.NewStore()
	for it.Next() {
		fv, err := cueValue(it.Value())
		if err != nil {
			return nil, err
		}
		st.Set(it.Selector().Unquoted(), fv)
	}
	return st, nil
}

func cueValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StructKind:
		return cueStruct(v)
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return nil, err
		}
		list := []any{}
		for it.Next() {
			ev, err := cueValue(it.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, ev)
		}
		return list, nil
	default:
		var out any
		if err := v.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
}
