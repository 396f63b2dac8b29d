package notebook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://notebooklm.google.com/notebook/abc123"

func testLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(filepath.Join(t.TempDir(), "notebooks.json"))
	require.NoError(t, err)
	return lib
}

func TestAddAndGet(t *testing.T) {
	lib := testLibrary(t)

	nb, err := lib.Add("physics", testURL, "lecture notes", []string{"school"})
	require.NoError(t, err)
	assert.Len(t, nb.ID, 8)
	assert.False(t, nb.AddedAt.IsZero())

	byID, err := lib.Get(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "physics", byID.Name)

	byName, err := lib.Get("PHYSICS")
	require.NoError(t, err)
	assert.Equal(t, nb.ID, byName.ID)

	_, err = lib.Get("chemistry")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddValidation(t *testing.T) {
	lib := testLibrary(t)

	_, err := lib.Add("", testURL, "", nil)
	assert.ErrorContains(t, err, "name is required")

	_, err = lib.Add("bad-scheme", "http://notebooklm.google.com/notebook/x", "", nil)
	assert.ErrorContains(t, err, "must use https")

	_, err = lib.Add("no-host", "https://", "", nil)
	assert.ErrorContains(t, err, "no host")

	_, err = lib.Add("physics", testURL, "", nil)
	require.NoError(t, err)
	_, err = lib.Add("Physics", testURL, "", nil)
	assert.ErrorContains(t, err, "already exists")
}

func TestListSortedByName(t *testing.T) {
	lib := testLibrary(t)
	for _, name := range []string{"zoology", "algebra", "music"} {
		_, err := lib.Add(name, testURL+"/"+name, "", nil)
		require.NoError(t, err)
	}

	listed := lib.List()
	require.Len(t, listed, 3)
	assert.Equal(t, "algebra", listed[0].Name)
	assert.Equal(t, "zoology", listed[2].Name)
}

func TestSearch(t *testing.T) {
	lib := testLibrary(t)
	_, err := lib.Add("physics", testURL+"/1", "mechanics and waves", []string{"school", "year2"})
	require.NoError(t, err)
	_, err = lib.Add("recipes", testURL+"/2", "dinner ideas", []string{"home"})
	require.NoError(t, err)

	t.Run("matches name substring", func(t *testing.T) {
		found, err := lib.Search("phys")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "physics", found[0].Name)
	})

	t.Run("matches description", func(t *testing.T) {
		found, err := lib.Search("dinner")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "recipes", found[0].Name)
	})

	t.Run("matches tags with glob", func(t *testing.T) {
		found, err := lib.Search("year?")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "physics", found[0].Name)
	})

	t.Run("no duplicates when multiple fields match", func(t *testing.T) {
		found, err := lib.Search("*")
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})
}

func TestActivate(t *testing.T) {
	lib := testLibrary(t)

	_, err := lib.Active()
	assert.ErrorIs(t, err, ErrNoActive)

	nb, err := lib.Add("physics", testURL, "", nil)
	require.NoError(t, err)

	_, err = lib.Activate("physics")
	require.NoError(t, err)

	active, err := lib.Active()
	require.NoError(t, err)
	assert.Equal(t, nb.ID, active.ID)

	_, err = lib.Activate("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveClearsActive(t *testing.T) {
	lib := testLibrary(t)
	_, err := lib.Add("physics", testURL, "", nil)
	require.NoError(t, err)
	_, err = lib.Activate("physics")
	require.NoError(t, err)

	require.NoError(t, lib.Remove("physics"))
	assert.Empty(t, lib.List())

	_, err = lib.Active()
	assert.ErrorIs(t, err, ErrNoActive)

	err = lib.Remove("physics")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordQueryAndStats(t *testing.T) {
	lib := testLibrary(t)
	_, err := lib.Add("physics", testURL+"/1", "", nil)
	require.NoError(t, err)
	_, err = lib.Add("recipes", testURL+"/2", "", nil)
	require.NoError(t, err)

	require.NoError(t, lib.RecordQuery(testURL+"/1"))
	require.NoError(t, lib.RecordQuery(testURL+"/1"))
	require.NoError(t, lib.RecordQuery(testURL+"/2"))
	require.NoError(t, lib.RecordQuery("https://elsewhere.example/notebook"), "unknown target is ignored")

	nb, err := lib.Get("physics")
	require.NoError(t, err)
	assert.Equal(t, 2, nb.QueryCount)
	assert.False(t, nb.LastUsed.IsZero())

	stats := lib.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 3, stats.TotalQueries)
	assert.Equal(t, "physics", stats.MostQueried)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebooks.json")

	lib, err := Open(path)
	require.NoError(t, err)
	_, err = lib.Add("physics", testURL, "notes", []string{"school"})
	require.NoError(t, err)
	_, err = lib.Activate("physics")
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)

	active, err := reopened.Active()
	require.NoError(t, err)
	assert.Equal(t, "physics", active.Name)
	assert.Equal(t, []string{"school"}, active.Tags)
}
