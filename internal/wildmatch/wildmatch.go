// Package wildmatch compiles gitignore-style glob patterns into matchers
// for sparse-checkout filtering (spec §4.9 "Sparse patterns") and
// tree-diff pathspec include/exclude lists (spec §4.7 "pathspecs").
//
// This is a from-scratch, regex-based translator grounded on the rule set
// described by the teacher's modules/wildmatch/wildmatch.go (leading "/"
// anchors, trailing "/" restricts to subtrees, "*"/"**" globbing, "!"
// negation, "#" comments) rather than a line-for-line port of its
// 850-line token-based engine: a pattern set here compiles each pattern to
// one compiled regexp instead of walking a hand-rolled token state
// machine, which is sufficient for the glob grammar spec §4.9 actually
// requires.
package wildmatch

import (
	"regexp"
	"strings"
)

// Pattern is one compiled line from a pattern file.
type Pattern struct {
	Raw            string
	Negate         bool
	DirOnly        bool
	Anchored       bool
	re             *regexp.Regexp
	literalPrefix  string
}

// Matcher evaluates an ordered pattern set with last-match-wins semantics
// (spec §4.9, §8 "Sparse patterns" property).
type Matcher struct {
	patterns []*Pattern
}

// Compile parses lines (as from a sparse-checkout or pathspec file),
// skipping blank lines and lines beginning with "#".
func Compile(lines []string) (*Matcher, error) {
	m := &Matcher{}
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		p, err := compileOne(trimmed)
		if err != nil {
			return nil, err
		}
		m.patterns = append(m.patterns, p)
	}
	return m, nil
}

func compileOne(raw string) (*Pattern, error) {
	p := &Pattern{Raw: raw}
	s := raw
	if strings.HasPrefix(s, "!") {
		p.Negate = true
		s = s[1:]
	}
	if strings.HasPrefix(s, "/") {
		p.Anchored = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "/") && len(s) > 1 {
		p.DirOnly = true
		s = strings.TrimSuffix(s, "/")
	}
	p.literalPrefix = literalPrefix(s)

	body := translateGlob(s)
	var pattern strings.Builder
	pattern.WriteByte('^')
	if !p.Anchored {
		pattern.WriteString("(?:.*/)?")
	}
	pattern.WriteString(body)
	if p.DirOnly {
		pattern.WriteString("(?:/.*)?$")
	} else {
		pattern.WriteByte('$')
	}
	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, err
	}
	p.re = re
	return p, nil
}

// literalPrefix returns the directory-aligned prefix of pattern before its
// first wildcard character, used by CouldContainMatches to prune subtrees
// without evaluating the full regex.
func literalPrefix(pattern string) string {
	idx := strings.IndexAny(pattern, "*?")
	if idx < 0 {
		return pattern
	}
	prefix := pattern[:idx]
	if slash := strings.LastIndexByte(prefix, '/'); slash >= 0 {
		return prefix[:slash]
	}
	return ""
}

func translateGlob(pattern string) string {
	var sb strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch {
		case c == '*':
			j := i
			for j < len(pattern) && pattern[j] == '*' {
				j++
			}
			if j-i >= 2 {
				sb.WriteString(".*")
			} else {
				sb.WriteString("[^/]*")
			}
			i = j
		case c == '?':
			sb.WriteString("[^/]")
			i++
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return sb.String()
}

// Match reports whether path (isDir indicates a directory entry) is
// selected by the pattern set: the last pattern that matches decides; no
// match at all means excluded (spec §4.9, §8 property).
func (m *Matcher) Match(path string, isDir bool) bool {
	path = strings.TrimPrefix(path, "/")
	matched := false
	decided := false
	for _, p := range m.patterns {
		target := path
		if p.DirOnly && !isDir {
			// A file matches a directory-only pattern only through a
			// directory above it.
			slash := strings.LastIndexByte(path, '/')
			if slash < 0 {
				continue
			}
			target = path[:slash]
		}
		if p.re.MatchString(target) {
			matched = !p.Negate
			decided = true
		}
	}
	return decided && matched
}

// CouldContainMatches reports whether dirPath might contain a selected
// path beneath it, used to prune whole subtrees during a tree walk (spec
// §4.9 "couldContainMatches"). An unanchored or negated-only pattern set
// can in principle match anywhere, so this only prunes when every
// positive pattern's literal prefix provably diverges from dirPath.
func (m *Matcher) CouldContainMatches(dirPath string) bool {
	dirPath = strings.TrimPrefix(dirPath, "/")
	any := false
	for _, p := range m.patterns {
		if p.Negate {
			continue
		}
		any = true
		if !p.Anchored {
			return true
		}
		if p.literalPrefix == "" {
			return true
		}
		if strings.HasPrefix(p.literalPrefix, dirPath) || strings.HasPrefix(dirPath, p.literalPrefix) {
			return true
		}
	}
	return !any
}
