package depresolve

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ArtifactFetcher retrieves a module's source archive from the
// artifact repository, the resolver's out-of-scope external
// collaborator. This repository ships [FilesystemCacheFetcher] as a
// default, swappable adapter so the resolver is runnable end-to-end
// without the real framework's repository client.
type ArtifactFetcher interface {
	// Fetch returns the filesystem path of group:artifact@version's
	// extracted source tree, downloading and extracting it into the
	// cache directory first if necessary. Returns [ErrArtifactNotFound]
	// if the artifact does not exist in the repository.
	Fetch(ctx context.Context, id ModuleId, classifier string) (string, error)
}

// ErrArtifactNotFound is returned by an [ArtifactFetcher] when the
// requested artifact does not exist.
var ErrArtifactNotFound = fmt.Errorf("artifact not found")

// FilesystemCacheFetcher is the default [ArtifactFetcher]. It expects
// archives to already be present (placed there by whatever real
// repository client the caller wires in) as either
// "<cacheDir>/<group>/<artifact>/<version>[-<classifier>].zip" or the
// same path with a ".tar.zst" suffix, and extracts them on first
// request, caching the extracted directory for subsequent calls. A zip
// archive is inflated with the standard library's archive/zip; a
// tar.zst archive — the artifact repository's preferred transfer
// format, since zstd outperforms DEFLATE at the sizes whole-module
// snapshots run to — is streamed through
// [github.com/klauspost/compress/zstd]'s decoder into archive/tar.
type FilesystemCacheFetcher struct {
	CacheDir string

	extracted map[string]string
}

func NewFilesystemCacheFetcher(cacheDir string) *FilesystemCacheFetcher {
	return &FilesystemCacheFetcher{CacheDir: cacheDir, extracted: map[string]string{}}
}

func (f *FilesystemCacheFetcher) Fetch(ctx context.Context, id ModuleId, classifier string) (string, error) {
	key := archiveKey(id, classifier)
	if dir, ok := f.extracted[key]; ok {
		return dir, nil
	}
	base := filepath.Join(f.CacheDir, id.Group, id.Artifact, key)
	destDir := filepath.Join(f.CacheDir, ".extracted", id.Group, id.Artifact, key)

	switch {
	case fileExists(base + ".zip"):
		if err := extractZip(base+".zip", destDir); err != nil {
			return "", &IOError{Op: "extract " + base + ".zip", Cause: err}
		}
	case fileExists(base + ".tar.zst"):
		if err := extractTarZst(base+".tar.zst", destDir); err != nil {
			return "", &IOError{Op: "extract " + base + ".tar.zst", Cause: err}
		}
	default:
		return "", ErrArtifactNotFound
	}
	f.extracted[key] = destDir
	return destDir, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func archiveKey(id ModuleId, classifier string) string {
	if classifier == "" {
		return id.Version
	}
	return id.Version + "-" + classifier
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	for _, zf := range r.File {
		target := filepath.Join(destDir, zf.Name)
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(zf, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(zf *zip.File, target string) error {
	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, zf.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()
	buf := make([]byte, 64*1024)
	_, err = io.CopyBuffer(dst, src, buf)
	return err
}

func extractTarZst(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			_, err = io.Copy(dst, tr)
			dst.Close()
			if err != nil {
				return err
			}
		}
	}
}
