package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	ls, err := NewLocalStorage(t.TempDir(), 0, logger)
	require.NoError(t, err)
	return ls
}

func sampleReport(runID string) *models.SiteReport {
	return &models.SiteReport{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		StartURL:    "https://example.com/",
		State:       models.CrawlCompleted,
		Pages: []models.PageRecord{
			{URL: "https://example.com/", StatusCode: 200, Indexable: true},
		},
		Summary: models.ReportSummary{PagesCrawled: 1},
	}
}

func TestSaveAndLoadReport(t *testing.T) {
	ls := newTestStorage(t)

	jsonPath, htmlPath, err := ls.SaveReport(sampleReport("run-1"), []byte("<html>report</html>"))
	require.NoError(t, err)
	assert.FileExists(t, jsonPath)
	assert.FileExists(t, htmlPath)

	loaded, err := ls.LoadReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "https://example.com/", loaded.StartURL)
	require.Len(t, loaded.Pages, 1)
	assert.Equal(t, 200, loaded.Pages[0].StatusCode)
}

func TestLoadReport_Missing(t *testing.T) {
	_, err := newTestStorage(t).LoadReport("nope")
	assert.Error(t, err)
}

func TestSaveReport_NoTempFilesLeftBehind(t *testing.T) {
	ls := newTestStorage(t)
	_, _, err := ls.SaveReport(sampleReport("run-1"), []byte("<html></html>"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(ls.baseDir, "audits", "run-1"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestSaveRawHTML(t *testing.T) {
	ls := newTestStorage(t)

	require.NoError(t, ls.SaveRawHTML("run-1", "https://example.com/about/team", "<html>team</html>"))

	entries, err := os.ReadDir(filepath.Join(ls.baseDir, "audits", "run-1", "html"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "example.com")

	data, err := os.ReadFile(filepath.Join(ls.baseDir, "audits", "run-1", "html", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "<html>team</html>", string(data))
}

func TestListRuns(t *testing.T) {
	ls := newTestStorage(t)
	for _, id := range []string{"run-a", "run-b"} {
		_, _, err := ls.SaveReport(sampleReport(id), []byte("x"))
		require.NoError(t, err)
	}

	runs, err := ls.ListRuns()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run-a", "run-b"}, runs)
}

func TestPDFPath(t *testing.T) {
	ls := newTestStorage(t)
	assert.Equal(t,
		filepath.Join(ls.baseDir, "audits", "run-1", "report.pdf"),
		ls.PDFPath("run-1"))
}
