package executor

import (
	"context"
	"strconv"
	"strings"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
)

// Vim returns the executor for .vim files. It understands a small subset of
// Vim script:
//
//	" comment
//	let g:key = value
//	let key = value
//	set key=value
//	set key
//	set nokey
//
// Lines starting with a backslash continue the previous line. Values are
// JSON literals, single-quoted strings, or v:true, v:false and v:null.
func (x *Executors) Vim() session.Executor {
	return session.ExecutorFunc(x.applyVim)
}

type vimLine struct {
	number int
	text   string
}

func (x *Executors) applyVim(_ context.Context, s *session.Session, path string) error {
	entry, err := x.read(s, path)
	if err != nil {
		return err
	}

	for _, line := range joinVimLines(string(entry.Content)) {
		if err := applyVimLine(s, line.text); err != nil {
			return zerr.With(zerr.With(err, "path", path), "line", line.number)
		}
	}
	return nil
}

func joinVimLines(content string) []vimLine {
	var lines []vimLine
	for i, raw := range strings.Split(content, "\n") {
		text := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if cont, ok := strings.CutPrefix(text, `\`); ok && len(lines) > 0 {
			lines[len(lines)-1].text += cont
			continue
		}
		lines = append(lines, vimLine{number: i + 1, text: text})
	}
	return lines
}

func applyVimLine(s *session.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, `"`) {
		return nil
	}

	cmd, rest, _ := strings.Cut(text, " ")
	switch cmd {
	case "let":
		return applyVimLet(s, rest)
	case "set", "se":
		return applyVimSet(s, rest)
	default:
		return domain.With(domain.ErrVimSyntax, "command", cmd)
	}
}

func applyVimLet(s *session.Session, rest string) error {
	name, raw, ok := strings.Cut(rest, "=")
	if !ok {
		return domain.With(domain.ErrVimSyntax, "statement", "let "+rest)
	}
	key := strings.TrimSpace(name)
	key = strings.TrimPrefix(key, "g:")
	if key == "" || strings.Contains(key, ":") {
		return domain.With(domain.ErrVimSyntax, "variable", strings.TrimSpace(name))
	}

	v, err := parseVimValue(strings.TrimSpace(raw))
	if err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrVimSyntax), "value", strings.TrimSpace(raw))
	}
	s.Data().SetDotted(key, v)
	return nil
}

func applyVimSet(s *session.Session, rest string) error {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return domain.With(domain.ErrVimSyntax, "statement", "set")
	}

	for _, field := range fields {
		if key, raw, ok := strings.Cut(field, "="); ok {
			s.Data().SetDotted(key, parseVimOption(raw))
			continue
		}
		if key, ok := strings.CutPrefix(field, "no"); ok && key != "" {
			s.Data().SetDotted(key, false)
			continue
		}
		s.Data().SetDotted(field, true)
	}
	return nil
}

func parseVimValue(raw string) (any, error) {
	switch raw {
	case "v:true":
		return true, nil
	case "v:false":
		return false, nil
	case "v:null":
		return nil, nil
	}
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return strings.ReplaceAll(raw[1:len(raw)-1], "''", "'"), nil
	}
	return decodeJSONValue([]byte(raw))
}

// parseVimOption types a set option value: numbers stay numbers, everything
// else is a string.
func parseVimOption(raw string) any {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}
