package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"product-pulse/models"
)

// newTestDB öffnet eine frische In-Memory-Datenbank pro Test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Story{},
		&models.Challenge{},
		&models.Edition{},
		&models.User{},
		&models.StoryRead{},
		&models.ChallengeSubmission{},
	))
	return db
}

func createStory(t *testing.T, db *gorm.DB, product, status string) models.Story {
	t.Helper()
	story := models.Story{
		Product:    product,
		Tagline:    product + " tagline",
		Source:     "producthunt",
		RawContent: "raw content for " + product,
		Breakdown:  datatypes.JSON("[]"),
		Status:     status,
	}
	require.NoError(t, db.Create(&story).Error)
	return story
}

func createChallenge(t *testing.T, db *gorm.DB, storyID uint, skill, status string) models.Challenge {
	t.Helper()
	options := []models.ChallengeOption{
		{ID: "a", Text: "Option A"},
		{ID: "b", Text: "Option B", IsCorrect: true},
		{ID: "c", Text: "Option C"},
		{ID: "d", Text: "Option D"},
	}
	raw, err := json.Marshal(options)
	require.NoError(t, err)
	challenge := models.Challenge{
		LinkedStoryID: storyID,
		Skill:         skill,
		Question:      "What is the core lesson?",
		Options:       datatypes.JSON(raw),
		Explanation:   "Option B captures the mechanism.",
		Status:        status,
	}
	require.NoError(t, db.Create(&challenge).Error)
	return challenge
}

func createUser(t *testing.T, db *gorm.DB, id string, streak, longest int, lastActive *time.Time) models.User {
	t.Helper()
	user := models.User{
		ID:             id,
		Email:          id + "@example.com",
		CurrentStreak:  streak,
		LongestStreak:  longest,
		LastActiveDate: lastActive,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}
