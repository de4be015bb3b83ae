package execute

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReport(t *testing.T, fsys afero.Fs, content string) string {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, "report.txt", []byte(content), 0644))
	return "report.txt"
}

func exists(t *testing.T, fsys afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fsys, path)
	require.NoError(t, err)
	return ok
}

const sampleReport = "## Size: 1K Instances: 2 Excess: 1K Names: 2\n" +
	"> keep/file\n" +
	"  dupe/file\n" +
	"\n" +
	"## Size: 2K Instances: 2 Excess: 2K Names: 2\n" +
	"  nobody/marked\n" +
	"  nobody/marked2\n" +
	"\n"

func TestDeleteRemovesUnmarked(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, p := range []string{"keep/file", "dupe/file", "nobody/marked", "nobody/marked2"} {
		require.NoError(t, afero.WriteFile(fsys, p, []byte("x"), 0644))
	}
	reportPath := setupReport(t, fsys, sampleReport)

	var out bytes.Buffer
	failures, err := Delete(fsys, reportPath, Options{Out: &out})
	require.NoError(t, err)
	assert.Zero(t, failures)

	assert.True(t, exists(t, fsys, "keep/file"))
	assert.False(t, exists(t, fsys, "dupe/file"))
	// Groups without a marked file are skipped entirely.
	assert.True(t, exists(t, fsys, "nobody/marked"))
	assert.True(t, exists(t, fsys, "nobody/marked2"))

	assert.Contains(t, out.String(), "dupe/file")
}

func TestDeleteDryRunTouchesNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, p := range []string{"keep/file", "dupe/file"} {
		require.NoError(t, afero.WriteFile(fsys, p, []byte("x"), 0644))
	}
	reportPath := setupReport(t, fsys, sampleReport)

	var out bytes.Buffer
	failures, err := Delete(fsys, reportPath, Options{DryRun: true, Out: &out})
	require.NoError(t, err)
	assert.Zero(t, failures)
	assert.True(t, exists(t, fsys, "dupe/file"))
	assert.Contains(t, out.String(), "dupe/file")
}

func TestDeleteCountsFailures(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "keep/file", []byte("x"), 0644))
	// dupe/file does not exist, so removing it fails.
	reportPath := setupReport(t, fsys, sampleReport)

	var out bytes.Buffer
	failures, err := Delete(fsys, reportPath, Options{Out: &out})
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
}

func TestDeleteAbortsOnMalformedReport(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "dupe/file", []byte("x"), 0644))
	reportPath := setupReport(t, fsys, "> keep/file\nbroken line\n")

	var out bytes.Buffer
	_, err := Delete(fsys, reportPath, Options{Out: &out})
	require.Error(t, err)
	// Nothing was touched.
	assert.True(t, exists(t, fsys, "dupe/file"))
}

// copyLinker fakes hard links on filesystems without them.
type copyLinker struct {
	fsys  afero.Fs
	fail  bool
	calls []string
}

func (l *copyLinker) Link(oldname, newname string) error {
	if l.fail {
		return fmt.Errorf("injected link failure")
	}
	l.calls = append(l.calls, oldname+" -> "+newname)
	data, err := afero.ReadFile(l.fsys, oldname)
	if err != nil {
		return err
	}
	return afero.WriteFile(l.fsys, newname, data, 0644)
}

func TestCoalesceReplacesWithLinks(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "keep/file", []byte("content"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "dupe/file", []byte("content"), 0644))
	reportPath := setupReport(t, fsys, sampleReport)

	linker := &copyLinker{fsys: fsys}
	var out bytes.Buffer
	failures, err := Coalesce(fsys, reportPath, linker, Options{Out: &out})
	require.NoError(t, err)
	assert.Zero(t, failures)

	require.Len(t, linker.calls, 1)
	assert.Equal(t, "keep/file -> dupe/file.dupescan-tmp", linker.calls[0])

	// The duplicate path still resolves, now to the linked content.
	data, err := afero.ReadFile(fsys, "dupe/file")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	// The temporary name is gone.
	assert.False(t, exists(t, fsys, "dupe/file.dupescan-tmp"))
}

func TestCoalesceDryRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "dupe/file", []byte("old"), 0644))
	reportPath := setupReport(t, fsys, sampleReport)

	linker := &copyLinker{fsys: fsys}
	var out bytes.Buffer
	failures, err := Coalesce(fsys, reportPath, linker, Options{DryRun: true, Out: &out})
	require.NoError(t, err)
	assert.Zero(t, failures)
	assert.Empty(t, linker.calls)
	assert.Contains(t, out.String(), "dupe/file <= keep/file")
}

func TestCoalesceCountsLinkFailures(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "dupe/file", []byte("old"), 0644))
	reportPath := setupReport(t, fsys, sampleReport)

	linker := &copyLinker{fsys: fsys, fail: true}
	var out bytes.Buffer
	failures, err := Coalesce(fsys, reportPath, linker, Options{Out: &out})
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	// The original duplicate is untouched on failure.
	data, readErr := afero.ReadFile(fsys, "dupe/file")
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(data))
}
