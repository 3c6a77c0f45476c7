// Package tools collects the small filesystem, hashing and formatting
// helpers shared by the archive pipeline, the manifest generator and the
// command line front end.
package tools

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ListFiles walks root and returns every regular file below it, nested
// directories included. Paths are root-joined, slash-separated and in
// deterministic lexical walk order.
func ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, filepath.ToSlash(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	return files, nil
}

// FileData reads the entire file.
func FileData(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// FileSize returns the file size in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// FileModified returns the modification time formatted as
// "2006-01-02 15:04:05" in local time.
func FileModified(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return info.ModTime().Format(time.DateTime), nil
}
