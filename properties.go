package hips

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/gogpu/hips/frames"
)

// Property defaults.
const (
	DefaultMinOrder  = 3
	DefaultTileWidth = 256
	DefaultFormat    = "jpg"
)

// mjdUnixEpoch is the Modified Julian Date of 1970-01-01.
const mjdUnixEpoch = 40587.0

// Properties holds the parsed properties file of a survey.
type Properties struct {
	MaxOrder    int
	MinOrder    int
	TileWidth   int
	Format      string // jpg, png, webp or eph; empty if unrecognized
	ReleaseDate float64
	Version     string
	Frame       frames.Frame

	values map[string]string
	keys   []string
}

// Get returns the raw value of a key.
func (p *Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in file order.
func (p *Properties) Keys() []string {
	return append([]string(nil), p.keys...)
}

// ParseProperties parses a HiPS properties file: "key = value" lines,
// with '#' and '!' comments. ISO-8859-1 files are transcoded to UTF-8.
func ParseProperties(data []byte) (*Properties, error) {
	if !utf8.Valid(data) {
		dec, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProperties, err)
		}
		data = dec
	}
	p := &Properties{
		MinOrder:  DefaultMinOrder,
		TileWidth: DefaultTileWidth,
		Format:    DefaultFormat,
		values:    make(map[string]string),
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		key, value, ok := splitProperty(sc.Text())
		if !ok {
			continue
		}
		if _, dup := p.values[key]; !dup {
			p.keys = append(p.keys, key)
		}
		p.values[key] = value
		if err := p.apply(key, value); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrProperties, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProperties, err)
	}
	return p, nil
}

func splitProperty(s string) (key, value string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] == '#' || s[0] == '!' || s[0] == '[' {
		return "", "", false
	}
	i := strings.IndexAny(s, "=:")
	if i <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
}

func (p *Properties) apply(key, value string) error {
	var err error
	switch key {
	case "hips_order":
		p.MaxOrder, err = strconv.Atoi(value)
	case "hips_order_min":
		p.MinOrder, err = strconv.Atoi(value)
	case "hips_tile_width":
		p.TileWidth, err = strconv.Atoi(value)
	case "hips_release_date":
		p.ReleaseDate, err = ParseReleaseDate(value)
	case "hips_version":
		p.Version = value
	case "hips_tile_format":
		p.Format = parseFormat(value)
	case "hips_frame":
		if f, ferr := frames.Parse(value); ferr == nil {
			p.Frame = f
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// parseFormat picks the tile format from a hips_tile_format value, which
// may list several formats.
func parseFormat(v string) string {
	v = strings.ToLower(v)
	switch {
	case strings.Contains(v, "webp"):
		return "webp"
	case strings.Contains(v, "jpeg"), strings.Contains(v, "jpg"):
		return "jpg"
	case strings.Contains(v, "png"):
		return "png"
	case strings.Contains(v, "eph"):
		return "eph"
	}
	return ""
}

var releaseDateLayouts = []string{
	"2006-01-02T15:04Z",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2006-01-02",
}

// ParseReleaseDate parses a hips_release_date value and returns it as a
// Modified Julian Date.
func ParseReleaseDate(s string) (float64, error) {
	for _, layout := range releaseDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return MJD(t), nil
		}
	}
	return 0, fmt.Errorf("invalid release date %q", s)
}

// MJD returns the Modified Julian Date of t.
func MJD(t time.Time) float64 {
	return float64(t.UTC().UnixMilli())/86400e3 + mjdUnixEpoch
}
