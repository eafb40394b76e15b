package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Downloader saves track resources into a local directory.
type Downloader struct {
	dir    string
	logger *zap.Logger
}

func NewDownloader(dir string, logger *zap.Logger) *Downloader {
	return &Downloader{dir: dir, logger: logger}
}

// Save copies src into the download directory and returns the written path.
// An existing file of the same name is not overwritten.
func (d *Downloader) Save(ctx context.Context, src string) (string, error) {
	name := downloadName(src)
	if name == "" {
		return "", fmt.Errorf("no file name in %q", src)
	}

	reader, _, err := openResource(ctx, src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	dest := filepath.Join(d.dir, name)
	file, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}

	n, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}

	d.logger.Info("Track downloaded", zap.String("src", src), zap.String("dest", dest), zap.Int64("bytes", n))
	return dest, nil
}

func downloadName(src string) string {
	p := src
	if isRemote(src) {
		u, err := url.Parse(src)
		if err != nil {
			return ""
		}
		p = u.Path
		if name := path.Base(p); name != "/" && name != "." {
			return name
		}
		return ""
	}
	name := filepath.Base(p)
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return ""
	}
	return name
}
