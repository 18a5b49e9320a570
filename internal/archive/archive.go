// Package archive builds the gzip tarballs used as the unit of transfer
// to object storage.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Create archives sourcePath into a gzip tarball at outPath. A directory
// source is rooted at the directory itself: member paths are relative, so
// the serving container finds the code subdirectory at code/ rather than
// under an absolute path. A file source yields a single member named after
// the file's base name. The walk is lexical, so identical inputs produce
// identical member path sets.
func Create(sourcePath, outPath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	if info.IsDir() {
		err = addDir(tw, sourcePath)
	} else {
		err = addFile(tw, sourcePath, filepath.Base(sourcePath), info)
	}
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}
	return out.Close()
}

func addDir(tw *tar.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return addFile(tw, path, filepath.ToSlash(rel), info)
	})
}

func addFile(tw *tar.Writer, path, name string, info fs.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", name, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}

// ListMembers returns the sorted member paths of a gzip tarball.
func ListMembers(archivePath string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	var members []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		members = append(members, strings.TrimPrefix(hdr.Name, "./"))
	}
	sort.Strings(members)
	return members, nil
}
