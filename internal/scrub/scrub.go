// Package scrub redacts secret values from text before it leaves the process.
//
// Each secret is matched in three forms: the raw value, its percent-encoding
// as produced by JavaScript's encodeURIComponent (the form most URL builders
// emit), and its standard padded base64 encoding. Every occurrence of each form
// is replaced with [REDACTED:<name>]. Secrets are processed longest value
// first, so a secret whose value contains another secret's value is redacted
// whole rather than leaving a [REDACTED:SHORT]def artifact.
package scrub

import (
	"cmp"
	"encoding/base64"
	"slices"
	"strings"
)

// Placeholder returns the redaction marker for a secret name.
func Placeholder(name string) string {
	return "[REDACTED:" + name + "]"
}

type entry struct {
	name  string
	forms []string
}

// Scrubber holds the prepared redaction candidates for one secret mapping.
// It is safe for concurrent use.
type Scrubber struct {
	entries []entry
}

// New prepares a Scrubber for the given name→value mapping. Empty values
// are skipped.
func New(secretValues map[string]string) *Scrubber {
	type kv struct{ name, value string }
	pairs := make([]kv, 0, len(secretValues))
	for name, value := range secretValues {
		if value == "" {
			continue
		}
		pairs = append(pairs, kv{name, value})
	}
	// Longest value first; name breaks ties so output is deterministic.
	slices.SortFunc(pairs, func(a, b kv) int {
		if c := cmp.Compare(len(b.value), len(a.value)); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	entries := make([]entry, 0, len(pairs))
	for _, p := range pairs {
		forms := []string{p.value}
		if enc := EncodeURIComponent(p.value); enc != p.value {
			forms = append(forms, enc)
		}
		if enc := base64.StdEncoding.EncodeToString([]byte(p.value)); enc != p.value {
			forms = append(forms, enc)
		}
		entries = append(entries, entry{name: p.name, forms: forms})
	}
	return &Scrubber{entries: entries}
}

// Scrub replaces every occurrence of every prepared form in text.
func (s *Scrubber) Scrub(text string) string {
	if text == "" || s == nil || len(s.entries) == 0 {
		return text
	}
	for _, e := range s.entries {
		marker := Placeholder(e.name)
		for _, form := range e.forms {
			text = strings.ReplaceAll(text, form, marker)
		}
	}
	return text
}

// Empty reports whether there is nothing to redact.
func (s *Scrubber) Empty() bool {
	return s == nil || len(s.entries) == 0
}

// Scrub redacts secretValues from text. See the package doc for the rules.
func Scrub(text string, secretValues map[string]string) string {
	if text == "" || len(secretValues) == 0 {
		return text
	}
	return New(secretValues).Scrub(text)
}

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent percent-encodes s the way JavaScript's
// encodeURIComponent does: A-Z a-z 0-9 and -_.!~*'() are kept, every other
// UTF-8 byte becomes %XX with uppercase hex.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
