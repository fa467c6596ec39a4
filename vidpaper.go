package vidpaper

// Version is stamped by the release workflow via -ldflags.
var Version = "dev"

// DefaultConfig is written by `vidpaper --installconfig`.
const DefaultConfig = `# vidpaper configuration

# Directory scanned for wallpapers when no per-output directory is set.
# Stills (jpg, jpeg, png, webp, gif) and videos (mp4, mkv, webm, mov, avi)
# are both picked up.
wallpapers = "~/Pictures/wallpapers"

# How media is scaled onto each output: stretch, fill, cover, fit, contain.
fit_mode = "cover"

# Target frame rate for video wallpapers.
video_fps = 60

# Seconds between automatic wallpaper rotations.
rotation_seconds = 300

# Seconds between compositor visibility probes. Video playback pauses on
# outputs whose background is fully covered.
poll_seconds = 2

# Limit vidpaper to specific outputs. When empty, every output the
# compositor reports is managed.
# outputs = ["DP-1", "HDMI-A-1"]

# Per-output overrides. A fixed "media" entry wins over a directory.
# [output.DP-1]
# dir = "~/Videos/wallpapers"
# fit_mode = "fit"
#
# [output.HDMI-A-1]
# media = "~/Videos/loop.mp4"
`
