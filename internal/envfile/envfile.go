// Package envfile locates and parses .env files without touching the process
// environment. Callers decide how the parsed values are merged.
package envfile

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FileName is the name of the file searched for by Find.
const FileName = ".env"

// DefaultDepth is the number of parent directories Find climbs by default.
const DefaultDepth = 5

var (
	lineBreak = regexp.MustCompile(`\r?\n`)
	pair      = regexp.MustCompile(`^([^=]+)=(.*)$`)

	utf16LEBOM = []byte{0xff, 0xfe}
	utf8BOM    = []byte{0xef, 0xbb, 0xbf}
)

// Find looks for a .env file in start and then in up to maxUp of its parent
// directories. It returns the first path found.
func Find(start string, maxUp int) (string, bool) {
	dir := start
	for step := 0; ; step++ {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		if step >= maxUp {
			return "", false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Decode returns the text of a .env file. Data starting with the UTF-16
// little-endian byte-order mark is decoded as UTF-16LE, everything else is
// treated as UTF-8.
func Decode(data []byte) (string, error) {
	if bytes.HasPrefix(data, utf16LEBOM) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", fmt.Errorf("decoding utf-16le: %w", err)
		}
		return string(out), nil
	}
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

// Parse decodes data and returns its key=value pairs. Blank lines and lines
// starting with # are ignored. A value wrapped in one matching pair of single
// or double quotes is unquoted.
func Parse(data []byte) (map[string]string, error) {
	text, err := Decode(data)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for _, line := range lineBreak.Split(text, -1) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := pair.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[1])
		if key == "" {
			continue
		}
		values[key] = unquote(strings.TrimSpace(m[2]))
	}
	return values, nil
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	first, last := v[0], v[len(v)-1]
	if first == last && (first == '"' || first == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}

// Load finds and parses the nearest .env file. When no file exists within
// maxUp parent directories it returns an empty map and an empty path.
func Load(start string, maxUp int) (map[string]string, string, error) {
	path, ok := Find(start, maxUp)
	if !ok {
		return map[string]string{}, "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("reading %s: %w", path, err)
	}

	values, err := Parse(data)
	if err != nil {
		return nil, path, fmt.Errorf("parsing %s: %w", path, err)
	}
	return values, path, nil
}

// Merge overlays values on an environ-style KEY=VALUE list. Entries from
// values replace same-named entries in environ.
func Merge(environ []string, values map[string]string) []string {
	merged := make([]string, 0, len(environ)+len(values))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if _, override := values[key]; override {
			continue
		}
		merged = append(merged, kv)
	}
	for _, k := range slices.Sorted(maps.Keys(values)) {
		merged = append(merged, k+"="+values[k])
	}
	return merged
}

// Lookup returns the last value for key in an environ-style list.
func Lookup(environ []string, key string) (string, bool) {
	var (
		val   string
		found bool
	)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k == key {
			val, found = v, true
		}
	}
	return val, found
}
