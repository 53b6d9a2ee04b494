package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbridge/review-engine/internal/models"
)

func writePolicy(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNewCatalog_Defaults(t *testing.T) {
	catalog := NewCatalog()

	resume := catalog.Get(models.DocumentResume)
	require.NotNil(t, resume)
	assert.True(t, resume.RequireRating)
	assert.Equal(t, 1, resume.MinRating)
	assert.Equal(t, 5, resume.MaxRating)
	assert.Equal(t, 4000, resume.MaxFeedbackLength)
	assert.Equal(t, 21*24*time.Hour, resume.ClaimTTL)

	coverLetter := catalog.Get(models.DocumentCoverLetter)
	require.NotNil(t, coverLetter)

	assert.Nil(t, catalog.Get("portfolio"))

	policies := catalog.List()
	require.Len(t, policies, 2)
	// Sorted by type
	assert.Equal(t, models.DocumentCoverLetter, policies[0].Type)
	assert.Equal(t, models.DocumentResume, policies[1].Type)
}

func TestLoadFromDir_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()

	writePolicy(t, dir, "resume.yaml", `
type: resume
display_name: Resume Review
require_rating: false
max_rating: 10
max_feedback_length: 500
claim_ttl: 168h
`)

	catalog := NewCatalog()
	require.NoError(t, catalog.LoadFromDir(dir))

	resume := catalog.Get(models.DocumentResume)
	require.NotNil(t, resume)
	assert.Equal(t, "Resume Review", resume.DisplayName)
	assert.False(t, resume.RequireRating)
	assert.Equal(t, 10, resume.MaxRating)
	assert.Equal(t, 500, resume.MaxFeedbackLength)
	assert.Equal(t, 7*24*time.Hour, resume.ClaimTTL)

	// Cover letter defaults untouched
	coverLetter := catalog.Get(models.DocumentCoverLetter)
	require.NotNil(t, coverLetter)
	assert.True(t, coverLetter.RequireRating)
}

func TestLoadFromFile_UnknownType(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "bad.yaml", "type: portfolio\n")

	catalog := NewCatalog()
	err := catalog.LoadFromFile(filepath.Join(dir, "bad.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidRatingRange(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "bad.yaml", `
type: resume
min_rating: 5
max_rating: 2
`)

	catalog := NewCatalog()
	err := catalog.LoadFromFile(filepath.Join(dir, "bad.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidTTL(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "bad.yaml", `
type: resume
claim_ttl: three weeks
`)

	catalog := NewCatalog()
	err := catalog.LoadFromFile(filepath.Join(dir, "bad.yaml"))
	assert.Error(t, err)
}

func TestLoadFromDir_SkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "broken.yaml", "type: [")
	writePolicy(t, dir, "cover_letter.yml", `
type: cover_letter
claim_ttl: 240h
`)

	catalog := NewCatalog()
	require.NoError(t, catalog.LoadFromDir(dir))

	coverLetter := catalog.Get(models.DocumentCoverLetter)
	require.NotNil(t, coverLetter)
	assert.Equal(t, 240*time.Hour, coverLetter.ClaimTTL)
}
