package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"moviehub/pkg/logger"
)

// AssetWriter is a scoped write target. Nothing is visible under the final name
// until Commit returns nil; Abort discards the bytes. Name is the name the asset
// was committed under, which differs from the requested one when that was taken.
type AssetWriter interface {
	io.Writer
	Commit() error
	Abort() error
	Name() string
}

// maxNameAttempts bounds the -2, -3, ... suffixes tried for a taken name.
const maxNameAttempts = 100

type AssetStorage interface {
	Create(name string) (AssetWriter, error)
}

// LocalAssets stores assets as files in one directory.
type LocalAssets struct {
	Dir string
}

func NewLocalAssets(dir string) (*LocalAssets, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assets: ensure dir %s: %w", dir, err)
	}
	return &LocalAssets{Dir: dir}, nil
}

func (l *LocalAssets) Create(name string) (AssetWriter, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("assets: invalid name %q", name)
	}
	f, err := os.CreateTemp(l.Dir, "."+name+".*.part")
	if err != nil {
		return nil, fmt.Errorf("assets: create temp for %s: %w", name, err)
	}
	return &fileAsset{f: f, dir: l.Dir, name: name}, nil
}

type fileAsset struct {
	f    *os.File
	dir  string
	name string
	done bool
}

func (a *fileAsset) Write(p []byte) (int, error) { return a.f.Write(p) }

func (a *fileAsset) Name() string { return a.name }

// Commit syncs and closes the temp file, then links it under the requested name,
// or under name-2.ext, name-3.ext, ... when that exists. An existing file is never
// replaced, so two thumbnails sharing a file name both survive.
func (a *fileAsset) Commit() error {
	if a.done {
		return errors.New("assets: writer already finished")
	}
	a.done = true
	tmp := a.f.Name()
	if err := a.f.Sync(); err != nil {
		_ = a.f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("assets: sync %s: %w", tmp, err)
	}
	if err := a.f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("assets: close %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	ext := filepath.Ext(a.name)
	stem := strings.TrimSuffix(a.name, ext)
	for i := 1; i <= maxNameAttempts; i++ {
		name := a.name
		if i > 1 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		err := os.Link(tmp, filepath.Join(a.dir, name))
		if err == nil {
			a.name = name
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("assets: link %s: %w", name, err)
		}
	}
	return fmt.Errorf("assets: no free name for %s after %d attempts", a.name, maxNameAttempts)
}

func (a *fileAsset) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	_ = a.f.Close()
	return os.Remove(a.f.Name())
}

// AssetFetcher downloads thumbnails into AssetStorage and returns their public URL.
type AssetFetcher struct {
	Source        Source
	Storage       AssetStorage
	PublicBaseURL string
	Log           *logger.Logger
}

// Fetch returns "" without touching storage when thumbnailURL is nil. Otherwise it
// returns only after the asset is committed, or with an error after aborting it.
func (f *AssetFetcher) Fetch(ctx context.Context, thumbnailURL *string) (string, error) {
	if thumbnailURL == nil {
		return "", nil
	}
	src := *thumbnailURL
	name, err := assetName(src)
	if err != nil {
		return "", &FetchError{URL: src, Err: err}
	}
	if _, err := url.JoinPath(f.PublicBaseURL, name); err != nil {
		return "", fmt.Errorf("assets: public url for %s: %w", name, err)
	}

	body, err := f.Source.Open(ctx, src)
	if err != nil {
		return "", err
	}
	defer body.Close()

	w, err := f.Storage.Create(name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Abort()
		return "", &FetchError{URL: src, Err: fmt.Errorf("stream asset: %w", err)}
	}
	if err := w.Commit(); err != nil {
		return "", err
	}
	if stored := w.Name(); stored != name {
		logger.OrNop(f.Log).Info("asset name taken, stored under another name",
			"url", src, "requested", name, "stored", stored)
		name = stored
	}
	return url.JoinPath(f.PublicBaseURL, name)
}

// assetName is the unescaped final path segment of rawURL.
func assetName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse asset url: %w", err)
	}
	name := path.Base(u.Path)
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || name == "" {
		return "", fmt.Errorf("asset url %q has no file name", rawURL)
	}
	return name, nil
}
