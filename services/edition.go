package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"product-pulse/models"
)

// ErrEditionNotFound wird an der Route auf 404 abgebildet.
var ErrEditionNotFound = errors.New("edition not found")

// EditionService verwaltet Editionen (Zusammenstellen, Veröffentlichen)
// und ist zugleich die Lese-Oberfläche für das Frontend.
type EditionService struct {
	DB     *gorm.DB
	Logger *zap.Logger

	// Now ist in Tests überschreibbar.
	Now func() time.Time
}

// NewEditionService erstellt eine neue Instanz des EditionService.
func NewEditionService(db *gorm.DB, logger *zap.Logger) *EditionService {
	return &EditionService{DB: db, Logger: logger, Now: time.Now}
}

// TodayUTC liefert den aktuellen Kalendertag als UTC-Mitternacht.
func (e *EditionService) TodayUTC() time.Time {
	now := e.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Assemble legt die Edition für date an (Upsert auf das eindeutige Datum)
// und hängt die genannten Stories sowie optional eine Challenge daran.
// Idempotent: ein Wiederholungslauf setzt dieselben Werte erneut.
func (e *EditionService) Assemble(date time.Time, storyIDs []uint, challengeID *uint) (*models.Edition, error) {
	edition := models.Edition{Date: date}
	if err := e.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoNothing: true,
	}).Create(&edition).Error; err != nil {
		return nil, err
	}
	// Bei DoNothing bleibt die ID leer; den bestehenden Datensatz nachladen.
	if err := e.DB.Where("date = ?", date).First(&edition).Error; err != nil {
		return nil, err
	}

	if len(storyIDs) > 0 {
		if err := e.DB.Model(&models.Story{}).
			Where("id IN ?", storyIDs).
			Update("edition_date", date).Error; err != nil {
			return nil, err
		}
	}
	if challengeID != nil {
		if err := e.DB.Model(&models.Challenge{}).
			Where("id = ?", *challengeID).
			Update("edition_date", date).Error; err != nil {
			return nil, err
		}
	}

	e.Logger.Info("Edition zusammengestellt",
		zap.Time("date", date),
		zap.Int("stories", len(storyIDs)))
	return &edition, nil
}

// PublishResult ist die Antwort von Publish.
type PublishResult struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// Publish verschiebt alle REVIEW-Inhalte der Edition nach PUBLISHED und
// stempelt publishedAt. Inhalte, die noch DRAFT oder PROCESSING sind,
// bleiben unberührt: Unfertiges darf nicht in die Veröffentlichung rutschen.
//
// Die Sequenz (Stories, Challenges, Zeitstempel) ist bewusst nicht atomar;
// ein Abbruch mittendrin ist über publishedAt IS NULL erkennbar und wird
// vom Operator aufgelöst.
func (e *EditionService) Publish(date time.Time) (*PublishResult, error) {
	var edition models.Edition
	if err := e.DB.Where("date = ?", date).First(&edition).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEditionNotFound
		}
		return nil, err
	}

	if err := e.DB.Model(&models.Story{}).
		Where("edition_date = ? AND status = ?", date, models.StatusReview).
		Update("status", models.StatusPublished).Error; err != nil {
		return nil, fmt.Errorf("stories veröffentlichen: %w", err)
	}
	if err := e.DB.Model(&models.Challenge{}).
		Where("edition_date = ? AND status = ?", date, models.StatusReview).
		Update("status", models.StatusPublished).Error; err != nil {
		return nil, fmt.Errorf("challenges veröffentlichen: %w", err)
	}

	now := e.Now().UTC()
	if err := e.DB.Model(&edition).Update("published_at", now).Error; err != nil {
		return nil, fmt.Errorf("publishedAt stempeln: %w", err)
	}

	e.Logger.Info("Edition veröffentlicht", zap.Time("date", date))
	return &PublishResult{Date: date.Format("2006-01-02"), Status: models.StatusPublished}, nil
}

// StoryView ist die Feed-Darstellung einer Story.
type StoryView struct {
	ID          uint           `json:"id"`
	Product     string         `json:"product"`
	Tagline     string         `json:"tagline"`
	Source      string         `json:"source"`
	SourceURL   string         `json:"source_url,omitempty"`
	Category    string         `json:"category,omitempty"`
	Tags        datatypes.JSON `json:"tags,omitempty"`
	Summary     string         `json:"summary"`
	Breakdown   datatypes.JSON `json:"breakdown"`
	ReadTimeMin int            `json:"read_time_min"`
}

// ChallengeView ist die Feed-Darstellung der Tages-Challenge. options wird
// unverändert durchgereicht; die Auflösung liefert der Submit-Endpoint.
type ChallengeView struct {
	ID            uint           `json:"id"`
	LinkedStoryID uint           `json:"linked_story_id"`
	LinkedProduct string         `json:"linked_product,omitempty"`
	Skill         string         `json:"skill"`
	Question      string         `json:"question"`
	Options       datatypes.JSON `json:"options"`
	Explanation   string         `json:"explanation"`
}

// Pagination beschreibt den Cursor-Zustand des Feeds.
type Pagination struct {
	NextCursor *uint `json:"next_cursor"`
	HasMore    bool  `json:"has_more"`
	Total      int64 `json:"total"`
}

// UserState ist das Overlay für eingeloggte User.
type UserState struct {
	ReadStoryIDs        []uint                      `json:"read_story_ids"`
	ChallengeSubmission *models.ChallengeSubmission `json:"challenge_submission"`
}

// TodayEdition ist die Antwort von Today.
type TodayEdition struct {
	Date       string         `json:"date"`
	Stories    []StoryView    `json:"stories"`
	Challenge  *ChallengeView `json:"challenge"`
	Pagination Pagination     `json:"pagination"`
	UserState  *UserState     `json:"user_state,omitempty"`
}

// Today liefert die veröffentlichten Stories des heutigen Tages mit
// Cursor-Pagination plus Tages-Challenge. userID "" bedeutet anonym.
func (e *EditionService) Today(userID string, limit int, cursor uint) (*TodayEdition, error) {
	today := e.TodayUTC()

	query := e.DB.Model(&models.Story{}).
		Where("edition_date = ? AND status = ?", today, models.StatusPublished).
		Order("id asc").
		Limit(limit)
	if cursor > 0 {
		query = query.Where("id > ?", cursor)
	}

	var stories []models.Story
	if err := query.Find(&stories).Error; err != nil {
		return nil, err
	}

	var total int64
	if err := e.DB.Model(&models.Story{}).
		Where("edition_date = ? AND status = ?", today, models.StatusPublished).
		Count(&total).Error; err != nil {
		return nil, err
	}

	views := make([]StoryView, 0, len(stories))
	for _, s := range stories {
		views = append(views, storyView(s))
	}

	var challengeView *ChallengeView
	var challenge models.Challenge
	err := e.DB.Where("edition_date = ? AND status = ?", today, models.StatusPublished).
		First(&challenge).Error
	switch {
	case err == nil:
		challengeView = &ChallengeView{
			ID:            challenge.ID,
			LinkedStoryID: challenge.LinkedStoryID,
			Skill:         challenge.Skill,
			Question:      challenge.Question,
			Options:       challenge.Options,
			Explanation:   challenge.Explanation,
		}
		var linked models.Story
		if err := e.DB.Select("product").First(&linked, challenge.LinkedStoryID).Error; err == nil {
			challengeView.LinkedProduct = linked.Product
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// kein Challenge für heute, zulässig
	default:
		return nil, err
	}

	var nextCursor *uint
	if len(stories) > 0 {
		last := stories[len(stories)-1].ID
		nextCursor = &last
	}
	hasMore := total > int64(limit)
	if cursor > 0 {
		hasMore = len(stories) == limit
	}

	result := &TodayEdition{
		Date:       today.Format("2006-01-02"),
		Stories:    views,
		Challenge:  challengeView,
		Pagination: Pagination{NextCursor: nextCursor, HasMore: hasMore, Total: total},
	}

	if userID != "" {
		state, err := e.userState(userID, stories, challengeView)
		if err != nil {
			return nil, err
		}
		result.UserState = state
	}
	return result, nil
}

func (e *EditionService) userState(userID string, stories []models.Story, challenge *ChallengeView) (*UserState, error) {
	storyIDs := make([]uint, 0, len(stories))
	for _, s := range stories {
		storyIDs = append(storyIDs, s.ID)
	}

	readIDs := []uint{}
	if len(storyIDs) > 0 {
		var reads []models.StoryRead
		if err := e.DB.Where("user_id = ? AND story_id IN ?", userID, storyIDs).Find(&reads).Error; err != nil {
			return nil, err
		}
		for _, r := range reads {
			readIDs = append(readIDs, r.StoryID)
		}
	}

	state := &UserState{ReadStoryIDs: readIDs}
	if challenge != nil {
		var sub models.ChallengeSubmission
		err := e.DB.Where("user_id = ? AND challenge_id = ?", userID, challenge.ID).First(&sub).Error
		if err == nil {
			state.ChallengeSubmission = &sub
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return state, nil
}

// StoryDetail ist die Einzelansicht einer Story inkl. Gelesen-Flag.
type StoryDetail struct {
	StoryView
	EditionDate *time.Time `json:"edition_date,omitempty"`
	IsRead      bool       `json:"is_read"`
}

// Story liefert eine einzelne Story; userID "" bedeutet anonym.
func (e *EditionService) Story(storyID uint, userID string) (*StoryDetail, error) {
	var story models.Story
	if err := e.DB.First(&story, storyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}

	detail := &StoryDetail{StoryView: storyView(story), EditionDate: story.EditionDate}
	if userID != "" {
		var read models.StoryRead
		err := e.DB.Where("user_id = ? AND story_id = ?", userID, storyID).First(&read).Error
		if err == nil {
			detail.IsRead = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return detail, nil
}

// ArchiveEdition ist eine Edition in der Archiv-Liste mitsamt ihren
// veröffentlichten Inhalten.
type ArchiveEdition struct {
	Date        string                  `json:"date"`
	PublishedAt *time.Time              `json:"published_at"`
	Stories     []ArchiveStorySummary   `json:"stories"`
	Challenges  []ArchiveChallengeEntry `json:"challenges"`
}

// ArchiveStorySummary ist die Kurzform einer Story im Archiv.
type ArchiveStorySummary struct {
	ID          uint   `json:"id"`
	Product     string `json:"product"`
	Tagline     string `json:"tagline"`
	Category    string `json:"category,omitempty"`
	ReadTimeMin int    `json:"read_time_min"`
}

// ArchiveChallengeEntry ist die Kurzform einer Challenge im Archiv.
type ArchiveChallengeEntry struct {
	ID    uint   `json:"id"`
	Skill string `json:"skill"`
}

// ArchivePage ist eine Seite des Editions-Archivs.
type ArchivePage struct {
	Editions   []ArchiveEdition `json:"editions"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// Archive listet veröffentlichte Editionen absteigend nach Datum.
func (e *EditionService) Archive(page, pageSize int) (*ArchivePage, error) {
	var editions []models.Edition
	if err := e.DB.
		Where("published_at IS NOT NULL").
		Order("date desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&editions).Error; err != nil {
		return nil, err
	}

	var total int64
	if err := e.DB.Model(&models.Edition{}).
		Where("published_at IS NOT NULL").
		Count(&total).Error; err != nil {
		return nil, err
	}

	result := &ArchivePage{
		Editions:   make([]ArchiveEdition, 0, len(editions)),
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}

	for _, ed := range editions {
		entry := ArchiveEdition{
			Date:        ed.Date.Format("2006-01-02"),
			PublishedAt: ed.PublishedAt,
			Stories:     []ArchiveStorySummary{},
			Challenges:  []ArchiveChallengeEntry{},
		}

		var stories []models.Story
		if err := e.DB.
			Where("edition_date = ? AND status = ?", ed.Date, models.StatusPublished).
			Order("id asc").
			Find(&stories).Error; err != nil {
			return nil, err
		}
		for _, s := range stories {
			entry.Stories = append(entry.Stories, ArchiveStorySummary{
				ID: s.ID, Product: s.Product, Tagline: s.Tagline,
				Category: s.Category, ReadTimeMin: s.ReadTimeMin,
			})
		}

		var challenges []models.Challenge
		if err := e.DB.
			Where("edition_date = ? AND status = ?", ed.Date, models.StatusPublished).
			Find(&challenges).Error; err != nil {
			return nil, err
		}
		for _, c := range challenges {
			entry.Challenges = append(entry.Challenges, ArchiveChallengeEntry{ID: c.ID, Skill: c.Skill})
		}

		result.Editions = append(result.Editions, entry)
	}
	return result, nil
}

func storyView(s models.Story) StoryView {
	return StoryView{
		ID:          s.ID,
		Product:     s.Product,
		Tagline:     s.Tagline,
		Source:      s.Source,
		SourceURL:   s.SourceURL,
		Category:    s.Category,
		Tags:        s.Tags,
		Summary:     s.Summary,
		Breakdown:   s.Breakdown,
		ReadTimeMin: s.ReadTimeMin,
	}
}
