package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgpvp/cgpvp/internal/types"
)

func TestStepOutput_SaveAndLoadLatest(t *testing.T) {
	dir := t.TempDir()

	first := types.PostDraft{Text: "primero", CollectedAt: time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC)}
	_, err := SaveStepOutput(dir, "paramedicos", StepDraft, first)
	require.NoError(t, err)

	// Filenames have millisecond resolution
	time.Sleep(5 * time.Millisecond)

	second := types.PostDraft{Text: "segundo", CollectedAt: time.Date(2026, 10, 17, 1, 0, 0, 0, time.UTC)}
	path, err := SaveStepOutput(dir, "paramedicos", StepDraft, second)
	require.NoError(t, err)

	got, gotPath, err := LoadLatestStepOutput[types.PostDraft](dir, "paramedicos", StepDraft)
	require.NoError(t, err)
	assert.Equal(t, path, gotPath)
	assert.Equal(t, "segundo", got.Text)
	assert.True(t, got.CollectedAt.Equal(second.CollectedAt))
}

func TestStepOutput_MissingStep(t *testing.T) {
	_, _, err := LoadLatestStepOutput[types.PostDraft](t.TempDir(), "paramedicos", StepRecord)
	assert.ErrorContains(t, err, "no cached output")
}
