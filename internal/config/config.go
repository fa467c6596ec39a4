// Package config turns viper state into immutable, fully resolved
// snapshots. The engine only ever reads snapshots; it never touches viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matjam/vidpaper/internal/types"
)

// OutputOverride holds the optional per-output settings. Zero values mean
// "not set, fall through to the global default".
type OutputOverride struct {
	Dir             string `mapstructure:"dir"`
	Media           string `mapstructure:"media"`
	FitMode         string `mapstructure:"fit_mode"`
	RotationSeconds int    `mapstructure:"rotation_seconds"`
}

// Snapshot is one consistent view of the configuration. It is never
// mutated after Load returns it; a reload produces a fresh snapshot that
// the engine swaps in atomically.
type Snapshot struct {
	WallpaperDir    string
	FitMode         types.FitMode
	VideoFPS        int
	RotationSeconds int
	PollSeconds     int
	Outputs         []string
	Overrides       map[string]OutputOverride
}

type rawConfig struct {
	Wallpapers      string                    `mapstructure:"wallpapers"`
	FitMode         string                    `mapstructure:"fit_mode"`
	VideoFPS        int                       `mapstructure:"video_fps"`
	RotationSeconds int                       `mapstructure:"rotation_seconds"`
	PollSeconds     int                       `mapstructure:"poll_seconds"`
	Outputs         []string                  `mapstructure:"outputs"`
	Output          map[string]OutputOverride `mapstructure:"output"`
}

// Load resolves the current viper state into a validated Snapshot.
// Validation failures are fatal to the caller: the daemon refuses to start
// (or keeps its previous snapshot on reload) rather than running with a
// half-usable config.
func Load(v *viper.Viper) (*Snapshot, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Snapshot{
		WallpaperDir:    CanonicalPath(raw.Wallpapers),
		VideoFPS:        raw.VideoFPS,
		RotationSeconds: raw.RotationSeconds,
		PollSeconds:     raw.PollSeconds,
		Outputs:         raw.Outputs,
		Overrides:       make(map[string]OutputOverride, len(raw.Output)),
	}

	mode := types.DefaultFitMode
	if raw.FitMode != "" {
		parsed, err := types.ParseFitMode(raw.FitMode)
		if err != nil {
			return nil, fmt.Errorf("invalid config: fit_mode: %w", err)
		}
		mode = parsed
	}
	s.FitMode = mode

	for name, ov := range raw.Output {
		if ov.FitMode != "" {
			if _, err := types.ParseFitMode(ov.FitMode); err != nil {
				return nil, fmt.Errorf("invalid config: output.%s.fit_mode: %w", name, err)
			}
		}
		ov.Dir = CanonicalPath(ov.Dir)
		ov.Media = CanonicalPath(ov.Media)
		s.Overrides[name] = ov
	}

	if s.WallpaperDir == "" {
		return nil, fmt.Errorf("invalid config: wallpapers directory is required")
	}
	if s.VideoFPS < 1 {
		return nil, fmt.Errorf("invalid config: video_fps must be >= 1, got %d", s.VideoFPS)
	}
	if s.RotationSeconds < 1 {
		return nil, fmt.Errorf("invalid config: rotation_seconds must be >= 1, got %d", s.RotationSeconds)
	}
	if s.PollSeconds < 1 {
		return nil, fmt.Errorf("invalid config: poll_seconds must be >= 1, got %d", s.PollSeconds)
	}

	return s, nil
}

// Manages reports whether the snapshot's output selection list includes
// name. An empty list manages every output the compositor reports.
func (s *Snapshot) Manages(name string) bool {
	if len(s.Outputs) == 0 {
		return true
	}
	for _, o := range s.Outputs {
		if o == name {
			return true
		}
	}
	return false
}

// Assignment is the fully resolved per-output configuration the engine
// acts on. Two equal assignments mean a reload must not disturb that
// output's pipeline.
type Assignment struct {
	// Media is a fixed wallpaper path. When set it wins over Dir and the
	// output does not rotate.
	Media string
	Dir   string
	Fit   types.FitMode
	FPS   int
	Every time.Duration
}

// Fixed reports whether the output is pinned to a single media file.
func (a Assignment) Fixed() bool { return a.Media != "" }

// AssignmentFor applies the resolution order: per-output override, then
// global default, then hard-coded default.
func (s *Snapshot) AssignmentFor(name string) Assignment {
	a := Assignment{
		Dir:   s.WallpaperDir,
		Fit:   s.FitMode,
		FPS:   s.VideoFPS,
		Every: time.Duration(s.RotationSeconds) * time.Second,
	}

	ov, ok := s.Overrides[name]
	if !ok {
		return a
	}
	if ov.Media != "" {
		a.Media = ov.Media
	}
	if ov.Dir != "" {
		a.Dir = ov.Dir
	}
	if ov.FitMode != "" {
		// validated in Load
		a.Fit = types.FitMode(ov.FitMode)
	}
	if ov.RotationSeconds > 0 {
		a.Every = time.Duration(ov.RotationSeconds) * time.Second
	}
	return a
}

// CanonicalPath expands a leading ~ to $HOME.
func CanonicalPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return os.Getenv("HOME")
	}
	if strings.HasPrefix(path, "~/") {
		return strings.Replace(path, "~", os.Getenv("HOME"), 1)
	}
	return path
}
