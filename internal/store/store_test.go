package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memdiag/crashreport/internal/report"
)

func TestStore_StoreAndRetrieve(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "reports"), 10, nil)
	require.NoError(t, err)

	first := report.Data{report.ReportID: "01A", report.TotalMemSize: "2000000000"}
	second := report.Data{report.ReportID: "01B", report.DumpsysMeminfo: ""}
	require.NoError(t, s.Store(first))
	require.NoError(t, s.Store(second))
	assert.Equal(t, 2, s.Count())

	got, err := s.RetrieveAll()
	require.NoError(t, err)
	assert.ElementsMatch(t, []report.Data{first, second}, got)
	assert.Equal(t, 0, s.Count())
}

func TestStore_FilenameUsesReportID(t *testing.T) {
	s, err := New(t.TempDir(), 10, nil)
	require.NoError(t, err)
	require.NoError(t, s.Store(report.Data{report.ReportID: "01HXYZ"}))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "-01HXYZ.json"), entries[0].Name())
}

func TestStore_RemovesCorruptedFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 10, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0640))

	got, err := s.RetrieveAll()
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = os.Stat(filepath.Join(dir, "bad.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestStore_DropsOldestWhenFull(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 1, nil)
	require.NoError(t, err)

	big := report.Data{report.ReportID: "00BIG", report.DumpsysMeminfo: strings.Repeat("x", 1024*1024+1)}
	require.NoError(t, s.Store(big))
	require.NoError(t, s.Store(report.Data{report.ReportID: "01SMALL"}))

	got, err := s.RetrieveAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "01SMALL", got[0].ID())
}

func TestStore_CountWhileStoring(t *testing.T) {
	s, err := New(t.TempDir(), 10, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Store(report.Data{}))
		}()
		go func() {
			defer wg.Done()
			s.Count()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Count())
}
