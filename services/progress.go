package services

import (
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"product-pulse/models"
)

// StreakWindowHours ist das Aktivitätsfenster, bevor ein Streak verfällt.
const StreakWindowHours = 36

var (
	// ErrChallengeNotFound wird an der Route auf 404 abgebildet.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrUserNotFound: User werden vom Auth-Flow angelegt, nicht hier.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidOption: selectedOption muss a, b, c oder d sein.
	ErrInvalidOption = errors.New("selectedOption must be a, b, c, or d")
)

// ReadResult ist die Antwort von MarkStoryRead.
type ReadResult struct {
	ReadID      uint `json:"read_id"`
	AlreadyRead bool `json:"already_read"`
}

// SubmitResult ist die Antwort von SubmitChallenge.
type SubmitResult struct {
	IsCorrect        bool   `json:"is_correct"`
	CorrectOption    string `json:"correct_option"`
	Explanation      string `json:"explanation"`
	Streak           int    `json:"streak"`
	AlreadySubmitted bool   `json:"already_submitted"`
}

// SkillStat ist die Treffergenauigkeit eines Skills im Dashboard.
type SkillStat struct {
	Skill    string `json:"skill"`
	Attempts int    `json:"attempts"`
	Correct  int    `json:"correct"`
	Accuracy int    `json:"accuracy"`
}

// Dashboard fasst den Fortschritt eines Users zusammen.
// Accuracy ist null, solange es keine Submissions gibt.
type Dashboard struct {
	Streak            int         `json:"streak"`
	LongestStreak     int         `json:"longest_streak"`
	StoriesRead       int64       `json:"stories_read"`
	ChallengesDone    int64       `json:"challenges_done"`
	ChallengesCorrect int64       `json:"challenges_correct"`
	Accuracy          *int        `json:"accuracy"`
	Skills            []SkillStat `json:"skills"`
}

// ProgressService verbucht Story-Reads und Challenge-Submissions und
// leitet daraus Streak und Skill-Genauigkeit ab. Nur dieser Service
// mutiert die Streak-Felder des Users.
type ProgressService struct {
	DB     *gorm.DB
	Logger *zap.Logger

	// Now ist in Tests überschreibbar.
	Now func() time.Time
}

// NewProgressService erstellt eine neue Instanz des ProgressService.
func NewProgressService(db *gorm.DB, logger *zap.Logger) *ProgressService {
	return &ProgressService{DB: db, Logger: logger, Now: time.Now}
}

// MarkStoryRead markiert eine Story als gelesen. Idempotent: der zweite
// Aufruf für dasselbe Paar liefert die ursprüngliche ReadID und ändert
// weder den Datensatz noch durationSec.
func (s *ProgressService) MarkStoryRead(userID string, storyID uint, durationSec *int) (*ReadResult, error) {
	var existing models.StoryRead
	err := s.DB.Where("user_id = ? AND story_id = ?", userID, storyID).First(&existing).Error
	if err == nil {
		return &ReadResult{ReadID: existing.ID, AlreadyRead: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// User und Story müssen existieren, sonst entstehen verwaiste
	// Reads, die storiesRead im Dashboard verfälschen.
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	var story models.Story
	if err := s.DB.First(&story, storyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}

	read := models.StoryRead{UserID: userID, StoryID: storyID, DurationSec: durationSec}
	if err := s.DB.Create(&read).Error; err != nil {
		// Unique-Constraint: ein paralleler Erst-Read hat gewonnen.
		// Als Lookup wiederholen statt den Fehler durchzureichen.
		var raced models.StoryRead
		if lookupErr := s.DB.Where("user_id = ? AND story_id = ?", userID, storyID).First(&raced).Error; lookupErr == nil {
			return &ReadResult{ReadID: raced.ID, AlreadyRead: true}, nil
		}
		return nil, err
	}

	now := s.Now().UTC()
	if err := s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_active_date", now).Error; err != nil {
		s.Logger.Warn("lastActiveDate konnte nicht gesetzt werden",
			zap.String("user_id", userID), zap.Error(err))
	}

	return &ReadResult{ReadID: read.ID, AlreadyRead: false}, nil
}

// SubmitChallenge verbucht eine Antwort. Idempotent: eine erneute Abgabe
// liefert das gespeicherte Ergebnis unverändert zurück, mit dem Streak zum
// Zeitpunkt der Wiederholung statt dem historischen.
func (s *ProgressService) SubmitChallenge(userID string, challengeID uint, selectedOption string) (*SubmitResult, error) {
	switch selectedOption {
	case "a", "b", "c", "d":
	default:
		return nil, ErrInvalidOption
	}

	var existing models.ChallengeSubmission
	err := s.DB.Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&existing).Error
	if err == nil {
		return s.storedResult(userID, challengeID, &existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var challenge models.Challenge
	if err := s.DB.First(&challenge, challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}

	correctOption, err := challenge.CorrectOption()
	if err != nil {
		return nil, err
	}
	isCorrect := correctOption.ID == selectedOption

	submission := models.ChallengeSubmission{
		UserID:         userID,
		ChallengeID:    challengeID,
		SelectedOption: selectedOption,
		IsCorrect:      isCorrect,
	}
	if err := s.DB.Create(&submission).Error; err != nil {
		// Unique-Constraint: parallele Erst-Submission hat gewonnen.
		var raced models.ChallengeSubmission
		if lookupErr := s.DB.Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&raced).Error; lookupErr == nil {
			return s.storedResult(userID, challengeID, &raced)
		}
		return nil, err
	}

	streak, err := s.updateStreak(userID, isCorrect)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{
		IsCorrect:        isCorrect,
		CorrectOption:    correctOption.ID,
		Explanation:      challenge.Explanation,
		Streak:           streak,
		AlreadySubmitted: false,
	}, nil
}

// storedResult baut die idempotente Antwort aus einer vorhandenen Submission.
func (s *ProgressService) storedResult(userID string, challengeID uint, sub *models.ChallengeSubmission) (*SubmitResult, error) {
	var challenge models.Challenge
	if err := s.DB.First(&challenge, challengeID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	correctOption, _ := challenge.CorrectOption()

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &SubmitResult{
		IsCorrect:        sub.IsCorrect,
		CorrectOption:    correctOption.ID,
		Explanation:      challenge.Explanation,
		Streak:           user.CurrentStreak,
		AlreadySubmitted: true,
	}, nil
}

// updateStreak wendet die Streak-Regeln an:
//   - mehr als 36h inaktiv: Reset auf 1 bei richtiger, 0 bei falscher Antwort
//   - im Fenster und richtig: +1
//   - im Fenster und falsch: unverändert, falsche Antworten dekrementieren nie
//
// lastActiveDate rückt bei jeder Submission auf jetzt vor.
func (s *ProgressService) updateStreak(userID string, isCorrect bool) (int, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	now := s.Now().UTC()
	hoursSinceActive := math.Inf(1)
	if user.LastActiveDate != nil {
		hoursSinceActive = now.Sub(*user.LastActiveDate).Hours()
	}

	newStreak := user.CurrentStreak
	if hoursSinceActive > StreakWindowHours {
		if isCorrect {
			newStreak = 1
		} else {
			newStreak = 0
		}
	} else if isCorrect {
		newStreak = user.CurrentStreak + 1
	}

	longest := user.LongestStreak
	if newStreak > longest {
		longest = newStreak
	}

	if err := s.DB.Model(&user).Updates(map[string]interface{}{
		"current_streak":   newStreak,
		"longest_streak":   longest,
		"last_active_date": now,
	}).Error; err != nil {
		return 0, err
	}
	return newStreak, nil
}

// GetDashboard aggregiert den Fortschritt eines Users. Die Skill-Statistik
// kommt aus einer einzelnen Join+Group-By-Abfrage.
func (s *ProgressService) GetDashboard(userID string) (*Dashboard, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var storiesRead int64
	if err := s.DB.Model(&models.StoryRead{}).Where("user_id = ?", userID).Count(&storiesRead).Error; err != nil {
		return nil, err
	}

	var total, correct int64
	if err := s.DB.Model(&models.ChallengeSubmission{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.ChallengeSubmission{}).
		Where("user_id = ? AND is_correct = ?", userID, true).Count(&correct).Error; err != nil {
		return nil, err
	}

	var accuracy *int
	if total > 0 {
		pct := int(math.Round(float64(correct) / float64(total) * 100))
		accuracy = &pct
	}

	type skillRow struct {
		Skill    string
		Attempts int
		Correct  int
	}
	var rows []skillRow
	if err := s.DB.Table("challenge_submissions").
		Select("challenges.skill AS skill, COUNT(*) AS attempts, SUM(CASE WHEN challenge_submissions.is_correct THEN 1 ELSE 0 END) AS correct").
		Joins("JOIN challenges ON challenges.id = challenge_submissions.challenge_id").
		Where("challenge_submissions.user_id = ?", userID).
		Group("challenges.skill").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	skills := make([]SkillStat, 0, len(rows))
	for _, row := range rows {
		stat := SkillStat{Skill: row.Skill, Attempts: row.Attempts, Correct: row.Correct}
		if row.Attempts > 0 {
			stat.Accuracy = int(math.Round(float64(row.Correct) / float64(row.Attempts) * 100))
		}
		skills = append(skills, stat)
	}

	return &Dashboard{
		Streak:            user.CurrentStreak,
		LongestStreak:     user.LongestStreak,
		StoriesRead:       storiesRead,
		ChallengesDone:    total,
		ChallengesCorrect: correct,
		Accuracy:          accuracy,
		Skills:            skills,
	}, nil
}
