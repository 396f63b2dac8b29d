package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notearc/nbq/pkg/query"
)

const testNotebookURL = "https://notebooklm.google.com/notebook/abc123"

// testApp wires a real app rooted in a temp directory. No command under
// test may launch a browser.
func testApp(t *testing.T) *app {
	t.Helper()
	t.Setenv("NBQ_DATA_DIR", t.TempDir())

	app, err := wireApp()
	require.NoError(t, err)
	t.Cleanup(app.shutdown.Shutdown)
	return app
}

func runCommand(t *testing.T, app *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(app)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNotebookLifecycle(t *testing.T) {
	app := testApp(t)

	out, err := runCommand(t, app, "notebook", "add", "physics", testNotebookURL, "--description", "lecture notes")
	require.NoError(t, err)
	assert.Contains(t, out, "Added physics")

	out, err = runCommand(t, app, "notebook", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "physics")
	assert.Contains(t, out, "lecture notes")

	out, err = runCommand(t, app, "notebook", "use", "physics")
	require.NoError(t, err)
	assert.Contains(t, out, "Active notebook: physics")

	out, err = runCommand(t, app, "notebook", "remove", "physics")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed.")

	out, err = runCommand(t, app, "notebook", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No notebooks registered")
}

func TestNotebookAddRejectsBadURL(t *testing.T) {
	app := testApp(t)

	_, err := runCommand(t, app, "notebook", "add", "bad", "http://notebooklm.google.com/x")
	assert.ErrorContains(t, err, "must use https")
}

func TestResolveTarget(t *testing.T) {
	app := testApp(t)
	_, err := app.library.Add("physics", testNotebookURL, "", nil)
	require.NoError(t, err)

	t.Run("explicit URL wins", func(t *testing.T) {
		target, err := resolveTarget(app, "physics", "https://other.example/nb")
		require.NoError(t, err)
		assert.Equal(t, "https://other.example/nb", target)
	})

	t.Run("library lookup by name", func(t *testing.T) {
		target, err := resolveTarget(app, "physics", "")
		require.NoError(t, err)
		assert.Equal(t, testNotebookURL, target)
	})

	t.Run("no selection and no active notebook", func(t *testing.T) {
		_, err := resolveTarget(app, "", "")
		assert.ErrorContains(t, err, "no notebook selected")
	})

	t.Run("falls back to the active notebook", func(t *testing.T) {
		_, err := app.library.Activate("physics")
		require.NoError(t, err)

		target, err := resolveTarget(app, "", "")
		require.NoError(t, err)
		assert.Equal(t, testNotebookURL, target)
	})
}

func TestDeliverAnswerSurvivesBookkeepingFailure(t *testing.T) {
	app := testApp(t)
	_, err := app.library.Add("physics", testNotebookURL, "", nil)
	require.NoError(t, err)

	// Make the next library save fail: the save renames a temp file onto
	// the library path, which cannot land on a directory.
	libPath := app.cfg.LibraryPath()
	require.NoError(t, os.Remove(libPath))
	require.NoError(t, os.Mkdir(libPath, 0o700))

	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	deliverAnswer(cmd, app, testNotebookURL, &query.Result{Answer: "the answer", Pooled: true})

	assert.Contains(t, out.String(), "the answer", "the answer must be printed even when bookkeeping fails")
	assert.Contains(t, errOut.String(), "could not update notebook stats")
}

func TestCacheCommandsOnEmptyCache(t *testing.T) {
	app := testApp(t)

	out, err := runCommand(t, app, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries:   0")

	out, err = runCommand(t, app, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache is empty.")

	out, err = runCommand(t, app, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 entries.")
}

func TestCacheCommandsWhenDisabled(t *testing.T) {
	t.Setenv("NBQ_CACHE_ENABLED", "false")
	app := testApp(t)

	_, err := runCommand(t, app, "cache", "stats")
	assert.ErrorContains(t, err, "cache is disabled")
}

func TestHistoryCommandsOnEmptyHistory(t *testing.T) {
	app := testApp(t)

	out, err := runCommand(t, app, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No history yet.")

	out, err = runCommand(t, app, "performance", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "no queries recorded")
}

func TestAuthStatusWithoutCredentials(t *testing.T) {
	app := testApp(t)

	out, err := runCommand(t, app, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved credentials")
}
