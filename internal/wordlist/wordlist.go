// Package wordlist reads line-oriented candidate lists such as MFA token
// guesses or extra enumeration paths.
package wordlist

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Source loads a wordlist by path.
type Source interface {
	Read(path string) ([]string, error)
}

// File reads wordlists from a filesystem. A nil FS reads from the OS.
type File struct {
	FS fs.FS
}

// Read returns the de-duplicated, trimmed entries of path in file order.
// Blank lines and lines starting with '#' are skipped.
func (f File) Read(path string) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if f.FS != nil {
		data, err = fs.ReadFile(f.FS, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading wordlist %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// Parse splits raw into entries.
func Parse(raw string) []string {
	lines := strings.Split(raw, "\n")
	seen := make(map[string]struct{}, len(lines))
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; !ok {
			seen[line] = struct{}{}
			result = append(result, line)
		}
	}
	return result
}
