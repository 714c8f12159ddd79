package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/frameshare/api/internal/config"
)

// Downloader fetches remote video through yt-dlp, reporting fractional
// progress parsed from the tool's percentage stream.
type Downloader struct {
	ytdlpPath string
	timeout   time.Duration
}

func NewDownloader(cfg *config.AcquireConfig) *Downloader {
	return &Downloader{
		ytdlpPath: cfg.YtdlpPath,
		timeout:   time.Duration(cfg.TimeoutMin) * time.Minute,
	}
}

// yt-dlp --newline emits lines like "[download]  42.1% of 3.50MiB at ...".
var downloadPercentRe = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// Download fetches url into destDir as <name>.mp4 and returns the output
// path. onProgress receives values in [0, 99]; 100 is reserved for the job
// completion transition. A zero-byte result is an error even when the tool
// exited cleanly.
func (d *Downloader) Download(ctx context.Context, url, destDir, name string, onProgress func(int)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outPath := filepath.Join(destDir, name+".mp4")
	args := []string{
		"--newline",
		"--no-warnings",
		"--no-playlist",
		"-f", "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b",
		"--merge-output-format", "mp4",
		"-o", outPath,
		url,
	}

	cmd := exec.CommandContext(ctx, d.ytdlpPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open yt-dlp stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if pct, ok := parseDownloadPercent(scanner.Text()); ok && onProgress != nil {
			onProgress(pct)
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("yt-dlp error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", fmt.Errorf("yt-dlp produced no output: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(outPath)
		return "", fmt.Errorf("yt-dlp produced an empty file")
	}

	return outPath, nil
}

func parseDownloadPercent(line string) (int, bool) {
	m := downloadPercentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	pct := int(f)
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	return pct, true
}
