// Package storage persists audit artifacts under the local output directory.
// Layout per run:
//
//	<base>/audits/<runID>/audit.json
//	<base>/audits/<runID>/report.html
//	<base>/audits/<runID>/report.pdf
//	<base>/audits/<runID>/html/<safe-filename>.html
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bl4ck0w1/sitelynx/internal/urlnorm"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

type LocalStorage struct {
	baseDir   string
	logger    *logrus.Logger
	mu        sync.RWMutex
	retention time.Duration
}

func NewLocalStorage(baseDir string, retention time.Duration, logger *logrus.Logger) (*LocalStorage, error) {
	if logger == nil {
		logger = logrus.New()
	}

	if err := os.MkdirAll(filepath.Join(baseDir, "audits"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audits directory: %w", err)
	}

	ls := &LocalStorage{
		baseDir:   baseDir,
		logger:    logger,
		retention: retention,
	}

	if retention > 0 {
		go ls.cleanupOldRuns()
	}

	return ls, nil
}

// RunDir returns the directory for one run's artifacts, creating it if
// needed.
func (ls *LocalStorage) RunDir(runID string) (string, error) {
	dir := filepath.Join(ls.baseDir, "audits", runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return dir, nil
}

// SaveReport writes audit.json and report.html for one run. The two
// artifacts are independent, so they are written concurrently; each write
// lands atomically via temp file and rename.
func (ls *LocalStorage) SaveReport(report *models.SiteReport, html []byte) (jsonPath, htmlPath string, err error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	dir, err := ls.RunDir(report.RunID)
	if err != nil {
		return "", "", err
	}
	jsonPath = filepath.Join(dir, "audit.json")
	htmlPath = filepath.Join(dir, "report.html")

	var g errgroup.Group
	g.Go(func() error {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return ls.writeAtomic(jsonPath, data)
	})
	g.Go(func() error {
		return ls.writeAtomic(htmlPath, html)
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}

	ls.logger.Infof("Report saved to %s", dir)
	return jsonPath, htmlPath, nil
}

// LoadReport reads a previously saved audit.json.
func (ls *LocalStorage) LoadReport(runID string) (*models.SiteReport, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	path := filepath.Join(ls.baseDir, "audits", runID, "audit.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var report models.SiteReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &report, nil
}

// ListRuns returns the stored run IDs, newest first by directory mtime.
func (ls *LocalStorage) ListRuns() ([]string, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(ls.baseDir, "audits"))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	type run struct {
		id    string
		mtime time.Time
	}
	var runs []run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		runs = append(runs, run{e.Name(), info.ModTime()})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].mtime.After(runs[j].mtime) })

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}

// SaveRawHTML archives one page body under the run's html/ directory, named
// by a collision-resistant transform of the URL.
func (ls *LocalStorage) SaveRawHTML(runID, pageURL, body string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	dir := filepath.Join(ls.baseDir, "audits", runID, "html")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create html directory: %w", err)
	}
	return ls.writeAtomic(filepath.Join(dir, urlnorm.SafeFilename(pageURL)), []byte(body))
}

// PDFPath returns where the run's PDF belongs. The PDF renderer writes the
// file itself, storage only names it.
func (ls *LocalStorage) PDFPath(runID string) string {
	return filepath.Join(ls.baseDir, "audits", runID, "report.pdf")
}

func (ls *LocalStorage) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

func (ls *LocalStorage) cleanupOldRuns() {
	cutoff := time.Now().Add(-ls.retention)
	auditsDir := filepath.Join(ls.baseDir, "audits")

	entries, err := os.ReadDir(auditsDir)
	if err != nil {
		ls.logger.WithError(err).Warn("Retention cleanup failed")
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(auditsDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			ls.logger.WithError(err).Warnf("Failed to remove expired run %s", e.Name())
			continue
		}
		ls.logger.Infof("Removed expired run %s", e.Name())
	}
}

// GetStats reports storage usage for the CLI.
func (ls *LocalStorage) GetStats() map[string]interface{} {
	runs, err := ls.ListRuns()
	if err != nil {
		return map[string]interface{}{"base_dir": ls.baseDir, "error": err.Error()}
	}
	var bytes int64
	_ = filepath.Walk(filepath.Join(ls.baseDir, "audits"), func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			bytes += info.Size()
		}
		return nil
	})
	return map[string]interface{}{
		"base_dir":    ls.baseDir,
		"runs":        len(runs),
		"total_bytes": bytes,
	}
}
