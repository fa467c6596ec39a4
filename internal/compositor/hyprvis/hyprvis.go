// Package hyprvis tracks per-output occlusion on Hyprland by polling
// hyprctl. An output counts as occluded when its active workspace has a
// fullscreen window, so video decode can pause while nobody can see the
// wallpaper.
package hyprvis

import (
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matjam/vidpaper/internal/compositor"
)

type monitor struct {
	Name            string `json:"name"`
	ActiveWorkspace struct {
		ID int `json:"id"`
	} `json:"activeWorkspace"`
}

type workspace struct {
	ID            int    `json:"id"`
	Monitor       string `json:"monitor"`
	HasFullscreen bool   `json:"hasfullscreen"`
}

// Watch polls hyprctl every interval and emits a VisibilityChanged event
// whenever an output's occlusion flips. The channel closes when ctx is
// canceled, or immediately when hyprctl is not on PATH.
func Watch(ctx context.Context, every time.Duration) <-chan compositor.Event {
	ch := make(chan compositor.Event, 8)

	go func() {
		defer close(ch)

		if _, err := exec.LookPath("hyprctl"); err != nil {
			log.Debug("hyprvis: hyprctl not found, occlusion tracking disabled")
			return
		}

		state := make(map[string]bool)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			occluded, err := poll(ctx)
			if err != nil {
				log.Debugf("hyprvis: poll failed: %v", err)
				continue
			}
			for name, occ := range occluded {
				if state[name] == occ {
					continue
				}
				state[name] = occ
				select {
				case ch <- compositor.Event{
					Kind:     compositor.VisibilityChanged,
					Name:     name,
					Occluded: occ,
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

func poll(ctx context.Context) (map[string]bool, error) {
	var monitors []monitor
	if err := queryJSON(ctx, "monitors", &monitors); err != nil {
		return nil, err
	}
	var workspaces []workspace
	if err := queryJSON(ctx, "workspaces", &workspaces); err != nil {
		return nil, err
	}
	return occlusionFrom(monitors, workspaces), nil
}

// occlusionFrom joins the two hyprctl views: an output is occluded when
// the workspace shown on it reports a fullscreen window.
func occlusionFrom(monitors []monitor, workspaces []workspace) map[string]bool {
	fullscreen := make(map[int]bool, len(workspaces))
	for _, w := range workspaces {
		if w.HasFullscreen {
			fullscreen[w.ID] = true
		}
	}

	out := make(map[string]bool, len(monitors))
	for _, m := range monitors {
		out[m.Name] = fullscreen[m.ActiveWorkspace.ID]
	}
	return out
}

func queryJSON(ctx context.Context, what string, v any) error {
	raw, err := exec.CommandContext(ctx, "hyprctl", "-j", what).Output()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
