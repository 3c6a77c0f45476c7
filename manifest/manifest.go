// Package manifest builds and verifies JSON file manifests. A manifest
// maps every file under a directory to its MD5 digest, optionally with
// size and modification date, and is the unit a client compares against
// a remote copy to decide which files to fetch.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ValkyFischer/ValkyrieUtils/tools"
)

// Generator indexes one directory. Manifest keys substitute the prefix
// for the directory path, so "assets/maps/a.dat" stands for
// "<dir>/maps/a.dat" when the prefix is "assets".
type Generator struct {
	dir      string
	prefix   string
	savePath string
	saveName string
	full     bool
	workers  int
	log      *logrus.Logger
}

// Option adjusts a Generator.
type Option func(*Generator)

// WithPrefix replaces the directory's base name as the key prefix.
func WithPrefix(prefix string) Option {
	return func(g *Generator) { g.prefix = strings.Trim(filepath.ToSlash(prefix), "/") }
}

// WithSaveTarget sets the directory and base name the manifest is saved
// under. The default is "<dir>/manifest.json".
func WithSaveTarget(dir, name string) Option {
	return func(g *Generator) {
		g.savePath = dir
		g.saveName = name
	}
}

// WithFull records size and modification date alongside each digest.
func WithFull() Option {
	return func(g *Generator) { g.full = true }
}

// WithWorkers caps the hashing pool. Values below one are ignored.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithLogger routes progress output to log. Nil keeps the default.
func WithLogger(log *logrus.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// New returns a generator for dir.
func New(dir string, opts ...Option) *Generator {
	g := &Generator{
		dir:      strings.TrimSuffix(filepath.ToSlash(dir), "/"),
		workers:  runtime.NumCPU(),
		saveName: "manifest",
	}
	g.prefix = path.Base(g.dir)
	g.savePath = g.dir
	if g.workers < 8 {
		g.workers = 8
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logrus.New()
	}
	return g
}

// Generate walks the directory and hashes every file into a fresh
// manifest. Files that cannot be hashed are logged and skipped.
func (g *Generator) Generate() (Manifest, error) {
	start := time.Now()
	files, err := tools.ListFiles(g.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScan, err)
	}
	if len(files) == 0 {
		g.log.Info("no files found")
		return Manifest{}, nil
	}

	m := g.hashFiles(files)

	fields := logrus.Fields{
		"files":   len(m),
		"elapsed": time.Since(start).Round(time.Millisecond).String(),
	}
	if g.full {
		var total int64
		for _, entry := range m {
			total += entry.Size
		}
		fields["size"] = tools.FormatSize(total)
	}
	g.log.WithFields(fields).Info("manifest generated")
	return m, nil
}

// hashFiles digests the files on a bounded worker pool.
func (g *Generator) hashFiles(files []string) Manifest {
	var (
		mu sync.Mutex
		m  = make(Manifest, len(files))
	)
	pool := new(errgroup.Group)
	pool.SetLimit(g.workers)
	for _, file := range files {
		file := file
		pool.Go(func() error {
			entry, err := g.hashFile(file)
			if err != nil {
				g.log.WithError(err).WithField("file", file).Warn("hashing failed")
				return nil
			}
			mu.Lock()
			m[g.key(file)] = entry
			mu.Unlock()
			return nil
		})
	}
	// Workers log and skip failures, so Wait only synchronizes.
	_ = pool.Wait()
	return m
}

func (g *Generator) hashFile(path string) (Entry, error) {
	hash, err := tools.HashFile(path, tools.MD5)
	if err != nil {
		return Entry{}, err
	}
	if !g.full {
		return Entry{Hash: hash}, nil
	}
	size, err := tools.FileSize(path)
	if err != nil {
		return Entry{}, err
	}
	modified, err := tools.FileModified(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Hash: hash, Size: size, Modified: modified}, nil
}

// key converts a walked file path into its manifest key.
func (g *Generator) key(path string) string {
	return strings.Replace(path, g.dir, g.prefix, 1)
}

// localPath converts a manifest key back into the on-disk location.
func (g *Generator) localPath(key string) string {
	return filepath.FromSlash(strings.Replace(filepath.ToSlash(key), g.prefix, g.dir, 1))
}

// Save writes the manifest as tab-indented JSON and returns the written
// path.
func (g *Generator) Save(m Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSave, err)
	}
	target := filepath.Join(g.savePath, g.saveName+".json")
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSave, err)
	}
	g.log.WithField("path", target).Info("manifest saved")
	return target, nil
}

// Load reads a manifest from a local path or, when source starts with
// http:// or https://, from a remote url.
func (g *Generator) Load(source string) (Manifest, error) {
	var data []byte
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %s returned %s", ErrLoad, source, resp.Status)
		}
		if data, err = io.ReadAll(resp.Body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
	} else {
		var err error
		if data, err = os.ReadFile(source); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return m, nil
}

// Check compares the directory against the local and remote manifests.
// It returns, in sorted order, the keys whose on-disk files no longer
// match the local manifest plus the remote keys the local side lacks.
func (g *Generator) Check(local, remote Manifest) []string {
	seen := map[string]bool{}
	var out []string
	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	for key, entry := range local {
		if g.fileModified(key, entry) {
			add(key)
		}
	}
	for key := range remote {
		if _, ok := local[key]; !ok {
			add(key)
			continue
		}
		if _, err := os.Stat(g.localPath(key)); err != nil {
			add(key)
		}
	}
	sort.Strings(out)
	g.log.WithField("files", len(out)).Info("manifest check finished")
	return out
}

// fileModified reports whether the file behind key diverges from its
// manifest entry. A missing file is not modified; the remote comparison
// in Check picks those up.
func (g *Generator) fileModified(key string, entry Entry) bool {
	target := g.localPath(key)
	if _, err := os.Stat(target); err != nil {
		return false
	}
	hash, err := tools.HashFile(target, tools.MD5)
	if err != nil {
		g.log.WithError(err).WithField("file", key).Warn("hashing failed")
		return true
	}
	return hash != entry.Hash
}

// Download fetches the named files from the remote base url into their
// places under the directory, creating parent directories as needed.
// Individual failures are logged and counted rather than aborting the
// batch.
func (g *Generator) Download(files []string, baseURL string) error {
	if len(files) == 0 {
		g.log.Info("no files to download")
		return nil
	}
	var failed int
	for _, key := range files {
		if err := g.downloadFile(key, baseURL); err != nil {
			g.log.WithError(err).WithField("file", key).Warn("download failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrDownload, failed, len(files))
	}
	g.log.WithField("files", len(files)).Info("download finished")
	return nil
}

func (g *Generator) downloadFile(key, baseURL string) error {
	// Keys come from a remote manifest; never let one climb out of the
	// directory tree.
	if !filepath.IsLocal(filepath.FromSlash(strings.TrimPrefix(key, "./"))) {
		return fmt.Errorf("non-local path %q", key)
	}
	url := strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(key, "./")
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	target := g.localPath(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Update re-hashes the given keys and folds the fresh entries into a
// copy of the manifest. Keys whose files cannot be read are logged and
// left at their old entries.
func (g *Generator) Update(local Manifest, keys []string) Manifest {
	out := make(Manifest, len(local))
	for k, v := range local {
		out[k] = v
	}
	if len(keys) == 0 {
		g.log.Info("no files to update")
		return out
	}
	for _, key := range keys {
		entry, err := g.hashFile(g.localPath(key))
		if err != nil {
			g.log.WithError(err).WithField("file", key).Warn("hashing failed")
			continue
		}
		out[key] = entry
	}
	return out
}
