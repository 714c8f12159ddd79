package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/frameshare/api/internal/config"
)

// VideoInfo is the result of a metadata probe.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64 // seconds
}

// Compositor applies an overlay image onto every frame of a video using
// ffprobe/ffmpeg as external processes.
type Compositor struct {
	ffmpegPath    string
	ffprobePath   string
	maxDimension  int
	audioBitrate  string
	audioChannels int
	timeout       time.Duration
}

func NewCompositor(cfg *config.TransformConfig) *Compositor {
	return &Compositor{
		ffmpegPath:    cfg.FfmpegPath,
		ffprobePath:   cfg.FfprobePath,
		maxDimension:  cfg.MaxDimension,
		audioBitrate:  cfg.AudioBitrate,
		audioChannels: cfg.AudioChannels,
		timeout:       time.Duration(cfg.TimeoutMin) * time.Minute,
	}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads pixel dimensions and duration from the source artifact.
func (c *Compositor) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("ffprobe parse error: %w", err)
	}

	info := &VideoInfo{}
	for _, s := range out.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("no decodable video stream in %s", path)
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = d
	}

	return info, nil
}

// TargetDims uniformly downscales (w, h) to fit within limit, rounding each
// side to an even value as required by 4:2:0 chroma subsampling.
func TargetDims(w, h, limit int) (int, int) {
	if w > limit || h > limit {
		scale := float64(limit) / float64(w)
		if h > w {
			scale = float64(limit) / float64(h)
		}
		w = int(math.Round(float64(w) * scale))
		h = int(math.Round(float64(h) * scale))
	}
	return evenDown(w), evenDown(h)
}

func evenDown(v int) int {
	if v%2 != 0 {
		v--
	}
	if v < 2 {
		v = 2
	}
	return v
}

// ScaleImage pre-scales the overlay asset to the target dimensions. Raster
// scaling a single image here is far cheaper than letting the video encoder
// rescale the overlay on every frame.
func (c *Compositor) ScaleImage(ctx context.Context, src, dst string, w, h int) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-y",
		"-loglevel", "error",
		"-nostdin",
		"-i", src,
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("overlay scale error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Composite overlays the pre-scaled image onto every frame of the source,
// downscaling video to (w, h). The audio track stays in container but is
// re-encoded to a fixed small bitrate tuned for fast re-upload by sharing
// targets. onProgress receives [0, 99] derived from encoder elapsed time over
// total duration.
func (c *Compositor) Composite(ctx context.Context, videoPath, overlayPath, outPath string, w, h int, duration float64, onProgress func(int)) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{
		"-y",
		"-loglevel", "error",
		"-nostdin",
		"-i", videoPath,
		"-i", overlayPath,
		"-filter_complex", fmt.Sprintf("[0:v]scale=%d:%d[base];[base][1:v]overlay=0:0", w, h),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-b:a", c.audioBitrate,
		"-ac", strconv.Itoa(c.audioChannels),
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		outPath,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if pct, ok := parseEncodeProgress(scanner.Text(), duration); ok && onProgress != nil {
			onProgress(pct)
		}
	}

	if err := cmd.Wait(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("ffmpeg error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(outPath)
		return fmt.Errorf("ffmpeg produced an empty file")
	}

	return nil
}

// parseEncodeProgress maps "-progress pipe:1" key=value lines to a percent.
// Lines of interest look like "out_time_ms=1234567" (microseconds, despite
// the name).
func parseEncodeProgress(line string, duration float64) (int, bool) {
	val, ok := strings.CutPrefix(line, "out_time_ms=")
	if !ok || duration <= 0 {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	pct := int(float64(us) / 1e6 / duration * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	return pct, true
}
