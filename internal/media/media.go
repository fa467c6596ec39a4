// Package media resolves wallpaper files on disk.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matjam/vidpaper/internal/types"
)

// Source is a resolved media path plus its kind. Immutable once
// constructed; ownership passes to the pipeline playing it.
type Source struct {
	Path string
	Kind types.MediaKind
}

var videoExts = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true,
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// KindOf classifies a path by extension. ok is false for files vidpaper
// does not render.
func KindOf(path string) (kind types.MediaKind, ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExts[ext]:
		return types.MediaVideo, true
	case imageExts[ext]:
		return types.MediaImage, true
	default:
		return "", false
	}
}

// Resolve builds a Source for an explicit path, rejecting missing files
// and unsupported formats up front so `set` fails at the command instead
// of during negotiation.
func Resolve(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("wallpaper does not exist: %s", path)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("wallpaper is a directory: %s", path)
	}
	kind, ok := KindOf(path)
	if !ok {
		return Source{}, fmt.Errorf("unsupported media type: %s", path)
	}
	return Source{Path: path, Kind: kind}, nil
}

// Scan lists supported media in dir, sorted by path. An empty directory
// is an error: every caller needs at least one candidate.
func Scan(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading wallpaper directory %s: %w", dir, err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, ok := KindOf(entry.Name())
		if !ok {
			continue
		}
		sources = append(sources, Source{
			Path: filepath.Join(dir, entry.Name()),
			Kind: kind,
		})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	if len(sources) == 0 {
		return nil, fmt.Errorf("no wallpapers found in %s", dir)
	}
	return sources, nil
}
