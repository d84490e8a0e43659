package scip

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/OPTIX/errors"
)

// ResolveIndexSource resolves an index artifact reference to a local file
// path. Local paths are used in place; anything remote is fetched into
// spoolDir under a scip-*.bin name. The returned cleanup removes whatever
// was fetched and is always safe to call.
//
// go-getter handles detection, so http(s) URLs, S3/GCS objects, and plain
// paths all work.
func ResolveIndexSource(ctx context.Context, input, spoolDir string, logger *zap.SugaredLogger) (string, func(), error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(input, pwd, getter.Detectors)
	if err != nil {
		return "", nil, errors.Wrapf(err, "detecting index source %q", input)
	}

	parsed, err := url.Parse(detected)
	if err != nil {
		return "", nil, errors.Wrapf(err, "parsing detected source %q", detected)
	}

	if parsed.Scheme == "file" || parsed.Scheme == "" {
		localPath := input
		if parsed.Scheme == "file" {
			localPath = parsed.Path
		}
		if !filepath.IsAbs(localPath) {
			localPath = filepath.Join(pwd, localPath)
		}
		fi, err := os.Stat(localPath)
		if err != nil {
			return "", nil, errors.Wrapf(err, "index file %s", localPath)
		}
		if fi.IsDir() {
			return "", nil, errors.InvalidInputf("index source %s is a directory", localPath)
		}
		return localPath, func() {}, nil
	}

	spooled := filepath.Join(spoolDir, "scip-"+uuid.NewString()+".bin")
	logger.Infow("Fetching index artifact",
		"input", input,
		"detected", detected,
		"destination", spooled,
	)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     spooled,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}
	if err := client.Get(); err != nil {
		os.Remove(spooled)
		return "", nil, errors.Wrapf(err, "fetching index artifact %q", input)
	}

	return spooled, func() { os.Remove(spooled) }, nil
}
