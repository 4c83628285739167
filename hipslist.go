package hips

import (
	"bufio"
	"bytes"
	"strings"
)

// HipsListEntry is one survey of a hipslist file.
type HipsListEntry struct {
	ServiceURL  string
	ReleaseDate float64 // MJD, 0 if absent or invalid
}

// ParseHipsList parses a hipslist file. Surveys are separated by blank
// lines; a survey without hips_service_url is skipped.
func ParseHipsList(data []byte) []HipsListEntry {
	var out []HipsListEntry
	var cur HipsListEntry
	flush := func() {
		if cur.ServiceURL != "" {
			out = append(out, cur)
		}
		cur = HipsListEntry{}
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		key, value, ok := splitProperty(line)
		if !ok {
			continue
		}
		switch key {
		case "hips_service_url":
			cur.ServiceURL = value
		case "hips_release_date":
			cur.ReleaseDate, _ = ParseReleaseDate(value)
		}
	}
	flush()
	return out
}
