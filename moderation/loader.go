package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"chat-relay/errors"
)

//go:embed blacklists/*
var blacklistsFS embed.FS

// BlacklistData carries the loaded words plus metadata for logging.
type BlacklistData struct {
	Words     []string
	Languages []string
}

// LoadBlacklists reads the embedded per-language wordlists. One word per
// line, '#' starts a comment, the filename (e.g. "en.txt") names the
// language.
func LoadBlacklists() (*BlacklistData, error) {
	entries, err := fs.ReadDir(blacklistsFS, "blacklists")
	if err != nil {
		return nil, err
	}

	var languages []string
	unique := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := blacklistsFS.ReadFile("blacklists/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// Scanner handles \n and \r\n line endings alike.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			unique[line] = struct{}{}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(unique) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	return &BlacklistData{Words: words, Languages: languages}, nil
}
