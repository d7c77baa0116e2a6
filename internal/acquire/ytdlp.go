package acquire

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"kotoba/internal/logging"
	"kotoba/internal/services"
)

// Executor abstracts command execution for testability. onLine receives each
// stdout and stderr line; calls are serialized.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the Downloader.
type Option func(*Downloader)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(d *Downloader) {
		if exec != nil {
			d.exec = exec
		}
	}
}

// Downloader wraps yt-dlp.
type Downloader struct {
	binary string
	exec   Executor
	logger *slog.Logger
}

// NewDownloader constructs a yt-dlp Downloader.
func NewDownloader(binary string, logger *slog.Logger, opts ...Option) *Downloader {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	d := &Downloader{
		binary: binary,
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(logger, "acquire"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Metadata returns the video title and uploader for url.
func (d *Downloader) Metadata(ctx context.Context, url string) (string, string, error) {
	args := []string{
		"--no-playlist", "--skip-download", "--no-warnings",
		"--print", "%(title)s",
		"--print", "%(uploader,channel|Unknown Channel)s",
		url,
	}
	var lines []string
	if err := d.exec.Run(ctx, d.binary, args, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}); err != nil {
		return "", "", d.toolError(ctx, "metadata", url, err, lines)
	}
	if len(lines) < 2 {
		return "", "", services.Wrap(services.ErrExternalTool, "acquire", "metadata", fmt.Sprintf("unexpected yt-dlp output for %s", url), nil)
	}
	// Warnings may precede the printed fields.
	return lines[len(lines)-2], lines[len(lines)-1], nil
}

// Download extracts the audio of url as MP3 into the uploader's channel
// folder under outputDir.
func (d *Downloader) Download(ctx context.Context, url, outputDir string, hook ProgressHook) (Source, error) {
	title, channel, err := d.Metadata(ctx, url)
	if err != nil {
		return Source{}, err
	}
	dir, err := channelDir(outputDir, channel)
	if err != nil {
		return Source{}, err
	}
	existing := snapshotMP3(dir)
	started := time.Now()

	args := []string{
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3", "--audio-quality", "192K",
		"--no-playlist", "--newline", "--no-warnings",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		url,
	}
	logger := logging.WithContext(ctx, d.logger)
	logger.Info("downloading audio",
		logging.String("url", url),
		logging.String("title", title),
		logging.String("channel", channel),
	)

	var (
		destination string
		tail        []string
	)
	err = d.exec.Run(ctx, d.binary, args, func(line string) {
		tail = appendTail(tail, line)
		event := parseLine(line)
		switch event.kind {
		case lineProgress:
			if hook != nil {
				hook.Percent(event.percent)
			}
		case lineExtract:
			destination = event.path
			if hook != nil {
				hook.Finished()
			}
		}
	})
	if err != nil {
		return Source{}, d.toolError(ctx, "download", url, err, tail)
	}

	path := destination
	if path == "" || !fileExists(path) {
		path = newestNewMP3(dir, existing)
	}
	if path == "" {
		return Source{}, services.Wrap(services.ErrExternalTool, "acquire", "download", "yt-dlp produced no mp3 file", nil)
	}
	if hook != nil {
		hook.ConversionDone()
	}
	logger.Info("download complete",
		logging.String("path", path),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Source{Path: path, Title: title, Channel: channel, Dir: dir, Remote: true, Owned: true}, nil
}

func (d *Downloader) toolError(ctx context.Context, op, url string, err error, output []string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	detail := url
	if len(output) > 0 {
		detail = fmt.Sprintf("%s: %s", url, output[len(output)-1])
	}
	return services.Wrap(services.ErrExternalTool, "acquire", op, detail, err)
}

type lineKind int

const (
	lineOther lineKind = iota
	lineProgress
	lineExtract
)

type lineEvent struct {
	kind    lineKind
	percent float64
	path    string
}

var progressPattern = regexp.MustCompile(`^\[download\]\s+([0-9]+(?:\.[0-9]+)?)%`)

const extractPrefix = "[ExtractAudio] Destination:"

// parseLine interprets one line of yt-dlp --newline output.
func parseLine(line string) lineEvent {
	line = strings.TrimSpace(line)
	if match := progressPattern.FindStringSubmatch(line); match != nil {
		percent, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return lineEvent{}
		}
		return lineEvent{kind: lineProgress, percent: percent}
	}
	if rest, ok := strings.CutPrefix(line, extractPrefix); ok {
		return lineEvent{kind: lineExtract, path: strings.TrimSpace(rest)}
	}
	return lineEvent{}
}

func appendTail(tail []string, line string) []string {
	const keep = 5
	if strings.TrimSpace(line) == "" {
		return tail
	}
	tail = append(tail, strings.TrimSpace(line))
	if len(tail) > keep {
		tail = tail[len(tail)-keep:]
	}
	return tail
}

func snapshotMP3(dir string) map[string]struct{} {
	seen := make(map[string]struct{})
	matches, _ := filepath.Glob(filepath.Join(dir, "*.mp3"))
	for _, m := range matches {
		seen[m] = struct{}{}
	}
	return seen
}

// newestNewMP3 prefers files absent from existing, falling back to the most
// recently modified MP3 in dir.
func newestNewMP3(dir string, existing map[string]struct{}) string {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.mp3"))
	var (
		best     string
		bestTime time.Time
		bestNew  bool
	)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		_, old := existing[m]
		isNew := !old
		switch {
		case best == "",
			isNew && !bestNew,
			isNew == bestNew && info.ModTime().After(bestTime):
			best, bestTime, bestNew = m, info.ModTime(), isNew
		}
	}
	return best
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanErr error
		once    sync.Once
	)
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onLine == nil {
				continue
			}
			mu.Lock()
			onLine(scanner.Text())
			mu.Unlock()
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
