// internal/interact/artifacts.go
package interact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
)

// TimestampLayout formats the suffix of generated names and artifact files.
const TimestampLayout = "20060102_150405"

// Artifact is a file produced by the run.
type Artifact struct {
	Path string
	Size int64
}

// UniqueFilename returns the base name of name with a timestamp appended to its
// stem: "report.csv" becomes "report_20240101_120000.csv".
func UniqueFilename(name string, t time.Time) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "download"
	}
	return fmt.Sprintf("%s_%s%s", stem, t.Format(TimestampLayout), ext)
}

// ValidateDownload checks that path is a regular, non-empty file.
func ValidateDownload(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, Wrap(DownloadValidationFailure, "download", zeroLoc, fmt.Sprintf("%s does not exist", path), err)
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, NewError(DownloadValidationFailure, "download", zeroLoc, fmt.Sprintf("%s is not a regular file", path))
	}
	if info.Size() == 0 {
		return Artifact{}, NewError(DownloadValidationFailure, "download", zeroLoc, fmt.Sprintf("%s is empty", path))
	}
	return Artifact{Path: path, Size: info.Size()}, nil
}

// Download runs trigger, waits for the browser download it causes, and saves it
// under the downloads directory with a unique name. Errors from trigger are
// returned as is; a download that never starts or arrives empty fails with
// DownloadValidationFailure.
func (i *Interactor) Download(ctx context.Context, trigger func(context.Context) error) (Artifact, error) {
	dctx := ctx
	if i.timing.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, i.timing.DownloadTimeout)
		defer cancel()
	}

	var triggerErr error
	d, err := i.page.Download(dctx, func(tctx context.Context) error {
		triggerErr = trigger(tctx)
		return triggerErr
	})
	if triggerErr != nil {
		return Artifact{}, triggerErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return Artifact{}, ctx.Err()
		}
		return Artifact{}, Wrap(DownloadValidationFailure, "download", zeroLoc, "no download completed", err)
	}

	if err := os.MkdirAll(i.paths.Downloads, 0o755); err != nil {
		return Artifact{}, Wrap(Internal, "download", zeroLoc, "cannot create downloads directory", err)
	}
	target := filepath.Join(i.paths.Downloads, UniqueFilename(d.SuggestedFilename(), i.now()))
	if err := d.SaveAs(target); err != nil {
		return Artifact{}, Wrap(DownloadValidationFailure, "download", zeroLoc, fmt.Sprintf("cannot save %s", target), err)
	}
	art, err := ValidateDownload(target)
	if err != nil {
		return Artifact{}, err
	}
	i.logger.Info("Download saved.", zap.String("path", art.Path), zap.Int64("bytes", art.Size))
	return art, nil
}

// CaptureArtifact saves a screenshot named <name>_<timestamp>.png under the
// screenshots directory and returns its path. Capture is best effort: failures
// are logged and yield an empty path, so a diagnostic never masks the failure
// it documents.
func (i *Interactor) CaptureArtifact(ctx context.Context, name string) string {
	// The step context may already be cancelled or past its deadline.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	png, err := i.page.Screenshot(cctx)
	if err != nil {
		i.logger.Warn("Screenshot failed.", zap.String("name", name), zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(i.paths.Screenshots, 0o755); err != nil {
		i.logger.Warn("Cannot create screenshots directory.", zap.String("dir", i.paths.Screenshots), zap.Error(err))
		return ""
	}
	path := filepath.Join(i.paths.Screenshots, fmt.Sprintf("%s_%s.png", name, i.now().Format(TimestampLayout)))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		i.logger.Warn("Cannot write screenshot.", zap.String("path", path), zap.Error(err))
		return ""
	}
	i.logger.Info("Screenshot captured.", zap.String("path", path))
	return path
}

var zeroLoc browser.Locator
