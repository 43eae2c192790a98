package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"product-pulse/models"
)

func newEditionService(t *testing.T, db *gorm.DB, now time.Time) *EditionService {
	t.Helper()
	svc := NewEditionService(db, zap.NewNop())
	svc.Now = func() time.Time { return now }
	return svc
}

func TestAssembleIdempotent(t *testing.T) {
	db := newTestDB(t)
	story := createStory(t, db, "Notely", models.StatusReview)
	challenge := createChallenge(t, db, story.ID, models.SkillGrowth, models.StatusReview)

	svc := newEditionService(t, db, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	date := svc.TodayUTC()

	first, err := svc.Assemble(date, []uint{story.ID}, &challenge.ID)
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := svc.Assemble(date, []uint{story.ID}, &challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var editions int64
	require.NoError(t, db.Model(&models.Edition{}).Count(&editions).Error)
	assert.EqualValues(t, 1, editions)

	var assembled models.Story
	require.NoError(t, db.First(&assembled, story.ID).Error)
	require.NotNil(t, assembled.EditionDate)
	assert.True(t, assembled.EditionDate.Equal(date))
}

func TestPublishScopesReviewOnly(t *testing.T) {
	db := newTestDB(t)
	ready := createStory(t, db, "Notely", models.StatusReview)
	draft := createStory(t, db, "Shipfast", models.StatusDraft)
	challenge := createChallenge(t, db, ready.ID, models.SkillGrowth, models.StatusReview)

	svc := newEditionService(t, db, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	date := svc.TodayUTC()

	_, err := svc.Assemble(date, []uint{ready.ID, draft.ID}, &challenge.ID)
	require.NoError(t, err)

	result, err := svc.Publish(date)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, result.Status)

	var published, stillDraft models.Story
	require.NoError(t, db.First(&published, ready.ID).Error)
	require.NoError(t, db.First(&stillDraft, draft.ID).Error)
	assert.Equal(t, models.StatusPublished, published.Status)
	// DRAFT in der Edition bleibt DRAFT: Unfertiges wird nie mitveröffentlicht
	assert.Equal(t, models.StatusDraft, stillDraft.Status)

	var publishedChallenge models.Challenge
	require.NoError(t, db.First(&publishedChallenge, challenge.ID).Error)
	assert.Equal(t, models.StatusPublished, publishedChallenge.Status)

	var edition models.Edition
	require.NoError(t, db.Where("date = ?", date).First(&edition).Error)
	require.NotNil(t, edition.PublishedAt)
}

func TestPublishUnknownDate(t *testing.T) {
	svc := newEditionService(t, newTestDB(t), time.Now())
	_, err := svc.Publish(svc.TodayUTC())
	assert.ErrorIs(t, err, ErrEditionNotFound)
}

func TestTodayPagination(t *testing.T) {
	db := newTestDB(t)
	svc := newEditionService(t, db, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	date := svc.TodayUTC()

	var ids []uint
	for _, product := range []string{"Notely", "Shipfast", "Loopline"} {
		story := createStory(t, db, product, models.StatusReview)
		ids = append(ids, story.ID)
	}
	challenge := createChallenge(t, db, ids[0], models.SkillGrowth, models.StatusReview)

	_, err := svc.Assemble(date, ids, &challenge.ID)
	require.NoError(t, err)
	_, err = svc.Publish(date)
	require.NoError(t, err)

	page1, err := svc.Today("", 2, 0)
	require.NoError(t, err)
	require.Len(t, page1.Stories, 2)
	assert.True(t, page1.Pagination.HasMore)
	assert.EqualValues(t, 3, page1.Pagination.Total)
	require.NotNil(t, page1.Pagination.NextCursor)
	require.NotNil(t, page1.Challenge)
	assert.Equal(t, "Notely", page1.Challenge.LinkedProduct)
	assert.Nil(t, page1.UserState)

	page2, err := svc.Today("", 2, *page1.Pagination.NextCursor)
	require.NoError(t, err)
	require.Len(t, page2.Stories, 1)
	assert.False(t, page2.Pagination.HasMore)
	assert.Equal(t, "Loopline", page2.Stories[0].Product)
}

func TestTodayUserStateOverlay(t *testing.T) {
	db := newTestDB(t)
	svc := newEditionService(t, db, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	date := svc.TodayUTC()

	createUser(t, db, "u1", 0, 0, nil)
	story := createStory(t, db, "Notely", models.StatusReview)
	challenge := createChallenge(t, db, story.ID, models.SkillGrowth, models.StatusReview)

	_, err := svc.Assemble(date, []uint{story.ID}, &challenge.ID)
	require.NoError(t, err)
	_, err = svc.Publish(date)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.StoryRead{UserID: "u1", StoryID: story.ID}).Error)
	require.NoError(t, db.Create(&models.ChallengeSubmission{
		UserID: "u1", ChallengeID: challenge.ID, SelectedOption: "b", IsCorrect: true,
	}).Error)

	result, err := svc.Today("u1", 2, 0)
	require.NoError(t, err)
	require.NotNil(t, result.UserState)
	assert.Equal(t, []uint{story.ID}, result.UserState.ReadStoryIDs)
	require.NotNil(t, result.UserState.ChallengeSubmission)
	assert.True(t, result.UserState.ChallengeSubmission.IsCorrect)
}

func TestStoryDetailIsRead(t *testing.T) {
	db := newTestDB(t)
	svc := newEditionService(t, db, time.Now())

	createUser(t, db, "u1", 0, 0, nil)
	story := createStory(t, db, "Notely", models.StatusPublished)
	require.NoError(t, db.Create(&models.StoryRead{UserID: "u1", StoryID: story.ID}).Error)

	detail, err := svc.Story(story.ID, "u1")
	require.NoError(t, err)
	assert.True(t, detail.IsRead)

	anonymous, err := svc.Story(story.ID, "")
	require.NoError(t, err)
	assert.False(t, anonymous.IsRead)

	_, err = svc.Story(999, "")
	assert.ErrorIs(t, err, ErrStoryNotFound)
}

func TestArchiveOrdering(t *testing.T) {
	db := newTestDB(t)
	svc := newEditionService(t, db, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))

	older := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	for _, date := range []time.Time{older, newer} {
		story := createStory(t, db, "Product-"+date.Format("0102"), models.StatusReview)
		_, err := svc.Assemble(date, []uint{story.ID}, nil)
		require.NoError(t, err)
		_, err = svc.Publish(date)
		require.NoError(t, err)
	}
	// Nicht veröffentlichte Edition bleibt außen vor
	_, err := svc.Assemble(svc.TodayUTC(), nil, nil)
	require.NoError(t, err)

	page, err := svc.Archive(1, 1)
	require.NoError(t, err)
	require.Len(t, page.Editions, 1)
	assert.Equal(t, "2026-08-29", page.Editions[0].Date)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Editions[0].Stories, 1)
}
