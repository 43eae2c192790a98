package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"product-pulse/models"
)

type stubLLM struct {
	responses []string
	calls     int
	err       error
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.calls >= len(s.responses) {
		return "", errors.New("stub: no response left")
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

const validBreakdown = "```json\n" + `[
  {"heading": "The Hook", "body": "A pointed onboarding moment drives the first save."},
  {"heading": "The Loop", "body": "Daily digests bring users back without push spam."},
  {"heading": "The Moat", "body": "Personal archives raise switching costs over time."}
]` + "\n```"

const validChallenge = `Here you go:
{
  "skill": "GROWTH",
  "question": "What drives Notely's retention?",
  "options": [
    {"id": "a", "text": "Paid ads", "isCorrect": false},
    {"id": "b", "text": "Daily digest loop", "isCorrect": true},
    {"id": "c", "text": "Referral bonus", "isCorrect": false},
    {"id": "d", "text": "App store ranking", "isCorrect": false}
  ],
  "explanation": "The digest is the recurring touchpoint."
}`

func TestProcessStorySuccess(t *testing.T) {
	db := newTestDB(t)
	story := createStory(t, db, "Notely", models.StatusDraft)

	client := &stubLLM{responses: []string{
		"Notely turns note capture into a retention machine.",
		validBreakdown,
		validChallenge,
	}}
	svc := NewProcessingService(db, client, zap.NewNop())

	result, err := svc.ProcessStory(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.ID, result.StoryID)
	assert.Equal(t, models.StatusReview, result.Status)
	require.NotZero(t, result.ChallengeID)

	var updated models.Story
	require.NoError(t, db.First(&updated, story.ID).Error)
	assert.Equal(t, models.StatusReview, updated.Status)
	assert.Equal(t, "Notely turns note capture into a retention machine.", updated.Summary)
	assert.Equal(t, 3, updated.ReadTimeMin)
	assert.Contains(t, string(updated.Breakdown), "The Hook")

	var challenge models.Challenge
	require.NoError(t, db.First(&challenge, result.ChallengeID).Error)
	assert.Equal(t, story.ID, challenge.LinkedStoryID)
	assert.Equal(t, models.SkillGrowth, challenge.Skill)
	assert.Equal(t, models.StatusReview, challenge.Status)

	correct, err := challenge.CorrectOption()
	require.NoError(t, err)
	assert.Equal(t, "b", correct.ID)
}

func TestProcessStoryRollbackOnInvalidBreakdown(t *testing.T) {
	db := newTestDB(t)
	story := createStory(t, db, "Notely", models.StatusDraft)

	// Nur 2 Abschnitte statt 3: Verarbeitung muss scheitern und die
	// Story vollständig nach DRAFT zurückrollen.
	client := &stubLLM{responses: []string{
		"A summary.",
		`[{"heading": "One", "body": "x"}, {"heading": "Two", "body": "y"}]`,
		validChallenge,
	}}
	svc := NewProcessingService(db, client, zap.NewNop())

	_, err := svc.ProcessStory(context.Background(), story.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3")

	var reverted models.Story
	require.NoError(t, db.First(&reverted, story.ID).Error)
	assert.Equal(t, models.StatusDraft, reverted.Status)
	assert.Empty(t, reverted.Summary)
	assert.Equal(t, "[]", string(reverted.Breakdown))

	var challenges int64
	require.NoError(t, db.Model(&models.Challenge{}).Count(&challenges).Error)
	assert.Zero(t, challenges)
}

func TestProcessStoryRollbackOnCompletionError(t *testing.T) {
	db := newTestDB(t)
	story := createStory(t, db, "Notely", models.StatusDraft)

	svc := NewProcessingService(db, &stubLLM{err: errors.New("rate limited")}, zap.NewNop())

	_, err := svc.ProcessStory(context.Background(), story.ID)
	require.Error(t, err)

	var reverted models.Story
	require.NoError(t, db.First(&reverted, story.ID).Error)
	assert.Equal(t, models.StatusDraft, reverted.Status)
}

func TestProcessStoryRejectsNonDraft(t *testing.T) {
	db := newTestDB(t)
	story := createStory(t, db, "Notely", models.StatusReview)

	svc := NewProcessingService(db, &stubLLM{}, zap.NewNop())

	_, err := svc.ProcessStory(context.Background(), story.ID)
	assert.ErrorIs(t, err, ErrStoryNotDraft)
}

func TestProcessStoryNotFound(t *testing.T) {
	svc := NewProcessingService(newTestDB(t), &stubLLM{}, zap.NewNop())

	_, err := svc.ProcessStory(context.Background(), 999)
	assert.ErrorIs(t, err, ErrStoryNotFound)
}

func TestProcessStoryUnknownSkillFallsBack(t *testing.T) {
	db := newTestDB(t)
	story := createStory(t, db, "Notely", models.StatusDraft)

	challenge := strings.Replace(validChallenge, `"GROWTH"`, `"VIBES"`, 1)
	client := &stubLLM{responses: []string{"A summary.", validBreakdown, challenge}}
	svc := NewProcessingService(db, client, zap.NewNop())

	result, err := svc.ProcessStory(context.Background(), story.ID)
	require.NoError(t, err)

	var stored models.Challenge
	require.NoError(t, db.First(&stored, result.ChallengeID).Error)
	assert.Equal(t, models.SkillStrategy, stored.Skill)
}

func TestProcessAllDraftsSkipsEmptyRawContent(t *testing.T) {
	db := newTestDB(t)
	withContent := createStory(t, db, "Notely", models.StatusDraft)

	empty := models.Story{Product: "Ghost", Source: "producthunt", Status: models.StatusDraft}
	require.NoError(t, db.Create(&empty).Error)

	client := &stubLLM{responses: []string{"A summary.", validBreakdown, validChallenge}}
	svc := NewProcessingService(db, client, zap.NewNop())

	results := svc.ProcessAllDrafts(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, withContent.ID, results[0].StoryID)
	assert.Equal(t, models.StatusReview, results[0].Status)

	var untouched models.Story
	require.NoError(t, db.First(&untouched, empty.ID).Error)
	assert.Equal(t, models.StatusDraft, untouched.Status)
}

func TestProcessAllDraftsReportsPerStoryOutcome(t *testing.T) {
	db := newTestDB(t)
	createStory(t, db, "Notely", models.StatusDraft)
	createStory(t, db, "Shipfast", models.StatusDraft)

	// Antworten reichen nur für eine Story; die zweite scheitert.
	// Erfolg und Fehlschlag sind über das Error-Feld unterscheidbar.
	client := &stubLLM{responses: []string{"A summary.", validBreakdown, validChallenge}}
	svc := NewProcessingService(db, client, zap.NewNop())

	results := svc.ProcessAllDrafts(context.Background())
	require.Len(t, results, 2)

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Error == "" {
			succeeded++
			assert.Equal(t, models.StatusReview, r.Status)
			assert.NotZero(t, r.ChallengeID)
		} else {
			failed++
			assert.Empty(t, r.Status)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
}

func TestReadTimeMin(t *testing.T) {
	assert.Equal(t, 3, readTimeMin(""))
	assert.Equal(t, 4, readTimeMin(strings.Repeat("word ", 150)))
	assert.Equal(t, 5, readTimeMin(strings.Repeat("word ", 250)))
}
