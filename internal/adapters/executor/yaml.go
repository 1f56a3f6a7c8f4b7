package executor

import (
	"context"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// YAML returns the executor for .yaml and .yml files. Mapping order is kept.
func (x *Executors) YAML() session.Executor {
	return session.ExecutorFunc(x.applyYAML)
}

func (x *Executors) applyYAML(_ context.Context, s *session.Session, path string) error {
	entry, err := x.read(s, path)
	if err != nil {
		return err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(entry.Content, &doc); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrYAMLDecodeFailed), "path", path)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil
	}

	root := resolveAlias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return domain.With(domain.ErrNotAnObject, "path", path)
	}
	data, err := yamlMapping(root)
	if err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrYAMLDecodeFailed), "path", path)
	}
	s.Data().MergeStore(data)
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func yamlMapping(n *yaml.Node) (*domain.Store, error) {
	st := domain.NewStore()
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if key.Value == "<<" {
			merged, err := yamlValue(value)
			if err != nil {
				return nil, err
			}
			if m, ok := merged.(*domain.Store); ok {
				st.MergeStore(m)
			}
			continue
		}
		v, err := yamlValue(value)
		if err != nil {
			return nil, err
		}
		st.Set(key.Value, v)
	}
	return st, nil
}

func yamlValue(n *yaml.Node) (any, error) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.MappingNode:
		return yamlMapping(n)
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
