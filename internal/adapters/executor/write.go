package executor

import (
	"bytes"
	"encoding/json"
	"path/filepath"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/session"
)

// MarshalData encodes the session data as indented JSON in insertion order,
// terminated by a newline.
func MarshalData(s *session.Session) ([]byte, error) {
	compact, err := s.Data().MarshalJSON()
	if err != nil {
		return nil, domain.Wrap(err, domain.ErrJSONEncodeFailed)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, domain.Wrap(err, domain.ErrJSONEncodeFailed)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteTarget returns the file the session data is persisted to: the recorded
// write target, or <configDir>/<projectName>.json.
func WriteTarget(s *session.Session) (string, error) {
	if target := s.WriteTarget(); target != "" {
		return target, nil
	}

	name := s.ProjectName()
	if name == "" {
		return "", domain.ErrMissingProjectName
	}
	configDir, err := s.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, filepath.FromSlash(name)+domain.ExtJSON), nil
}

// WriteJSON submits the session data to files, or to the session's File Cache
// when files is nil. It reports whether the write request was accepted.
func WriteJSON(s *session.Session, files ports.FileCache) bool {
	if files == nil {
		files = s.FileCache()
	}
	if files == nil {
		return false
	}

	target, err := WriteTarget(s)
	if err != nil {
		return false
	}
	content, err := MarshalData(s)
	if err != nil {
		return false
	}
	return files.Write(target, content)
}
