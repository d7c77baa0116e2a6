package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kotoba/internal/fileutil"
	"kotoba/internal/services"
	"kotoba/internal/textutil"
)

// LocalChannel is the channel folder for files that did not come from YouTube.
const LocalChannel = "Local Files"

// Source is an acquired recording.
type Source struct {
	// Path is the audio file inside the channel folder.
	Path    string
	Title   string
	Channel string
	// Dir is the channel folder that outputs are written to.
	Dir    string
	Remote bool
	// Owned marks a file kotoba created, which the pipeline may rename or
	// remove once the outputs are written.
	Owned bool
}

// ProgressHook receives download milestones.
type ProgressHook interface {
	Percent(percent float64)
	Finished()
	ConversionDone()
}

// Resolve acquires input, which is either a local path or a YouTube URL.
func Resolve(ctx context.Context, input, outputDir string, downloader *Downloader, hook ProgressHook) (Source, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return Source{}, services.Wrap(services.ErrValidation, "acquire", "resolve", "no input given", nil)
	case IsYouTubeURL(input):
		if downloader == nil {
			return Source{}, services.Wrap(services.ErrConfiguration, "acquire", "resolve", "no downloader configured", nil)
		}
		return downloader.Download(ctx, input, outputDir, hook)
	case looksLikeURL(input):
		return Source{}, services.Wrap(services.ErrValidation, "acquire", "resolve", fmt.Sprintf("not a YouTube URL: %s", input), nil)
	default:
		src, err := Local(input, outputDir)
		if err == nil && hook != nil {
			hook.ConversionDone()
		}
		return src, err
	}
}

// Local copies path into the Local Files channel under outputDir. A file that
// already lives there is used in place.
func Local(path, outputDir string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Source{}, services.Wrap(services.ErrValidation, "acquire", "local", fmt.Sprintf("file not found: %s", path), nil)
		}
		return Source{}, services.Wrap(services.ErrValidation, "acquire", "local", path, err)
	}
	if !info.Mode().IsRegular() {
		return Source{}, services.Wrap(services.ErrValidation, "acquire", "local", fmt.Sprintf("not a regular file: %s", path), nil)
	}

	dir, err := channelDir(outputDir, LocalChannel)
	if err != nil {
		return Source{}, err
	}
	dest := filepath.Join(dir, filepath.Base(path))
	owned := false
	if !fileutil.SameFile(path, dest) {
		if err := fileutil.CopyFile(path, dest); err != nil {
			return Source{}, fmt.Errorf("copy %s into %s: %w", path, dir, err)
		}
		owned = true
	}
	return Source{
		Path:    dest,
		Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Channel: LocalChannel,
		Dir:     dir,
		Owned:   owned,
	}, nil
}

func channelDir(outputDir, channel string) (string, error) {
	dir := filepath.Join(outputDir, textutil.SanitizeFileName(channel, "Unknown Channel"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create channel folder: %w", err)
	}
	return dir, nil
}
