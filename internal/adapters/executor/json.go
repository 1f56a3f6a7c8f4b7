package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
)

// JSON returns the executor for .json files. The decoded object is deep-merged
// into the session data and the file becomes the session's write target.
func (x *Executors) JSON() session.Executor {
	return session.ExecutorFunc(x.applyJSON)
}

func (x *Executors) applyJSON(_ context.Context, s *session.Session, path string) error {
	entry, err := x.read(s, path)
	if err != nil {
		return err
	}

	data, ok := entry.ParsedJSON().(*domain.Store)
	if !ok {
		data, err = decodeJSON(entry.Content)
		if err != nil {
			return zerr.With(domain.Wrap(err, domain.ErrJSONDecodeFailed), "path", path)
		}
		entry.SetParsedJSON(data)
	}

	s.Data().MergeStore(data)
	s.SetWriteTarget(path)
	return nil
}

// newDecoder returns a decoder that keeps numbers as json.Number so integers
// beyond float64 precision survive a write back.
func newDecoder(content []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	return dec
}

// decodeJSON decodes a JSON object keeping the key order and number literals
// of the document.
func decodeJSON(content []byte) (*domain.Store, error) {
	dec := newDecoder(content)

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, domain.ErrNotAnObject
	}
	st, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, zerr.New("unexpected data after top-level object")
	}
	return st, nil
}

func decodeJSONValue(content []byte) (any, error) {
	dec := newDecoder(content)
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, zerr.New("unexpected data after value")
	}
	return v, nil
}

// decodeObject decodes the members of an object whose opening brace was consumed.
func decodeObject(dec *json.Decoder) (*domain.Store, error) {
	st := domain.NewStore()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, zerr.New("object key is not a string")
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		st.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return st, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		return decodeObject(dec)
	case '[':
		list := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, zerr.With(zerr.New("unexpected delimiter"), "delimiter", delim.String())
	}
}
