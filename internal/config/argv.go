package config

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseCommand splits a shell-like command line into argv. It understands
// single and double quotes and backslash escapes. A blank line or one that
// starts with '#' yields no command.
func ParseCommand(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return nil, nil
	}

	var sp argvSplitter
	for _, r := range line {
		sp.feed(r)
	}
	switch {
	case sp.escaped:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", line)
	case sp.quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", line)
	}
	sp.endWord()
	return sp.args, nil
}

// splitCommand is ParseCommand for compiled-in command lines.
func splitCommand(line string) []string {
	args, err := ParseCommand(line)
	if err != nil {
		panic(err)
	}
	return args
}

type argvSplitter struct {
	args    []string
	word    strings.Builder
	inWord  bool
	quote   rune
	escaped bool
}

func (s *argvSplitter) feed(r rune) {
	if s.escaped {
		s.escaped = false
		s.add(r)
		return
	}
	if s.quote != 0 {
		if r == s.quote {
			s.quote = 0
		} else {
			s.add(r)
		}
		return
	}
	switch {
	case r == '\\':
		s.escaped = true
		s.inWord = true
	case r == '\'' || r == '"':
		s.quote = r
		s.inWord = true
	case unicode.IsSpace(r):
		s.endWord()
	default:
		s.add(r)
	}
}

func (s *argvSplitter) add(r rune) {
	s.word.WriteRune(r)
	s.inWord = true
}

func (s *argvSplitter) endWord() {
	if !s.inWord {
		return
	}
	s.args = append(s.args, s.word.String())
	s.word.Reset()
	s.inWord = false
}
