package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"product-pulse/llm"
	"product-pulse/models"
)

// Batch-Obergrenze für ProcessAllDrafts.
const maxDraftsPerBatch = 20

var (
	// ErrStoryNotFound wird an der Route auf 404 abgebildet.
	ErrStoryNotFound = errors.New("story not found")
	// ErrStoryNotDraft: Verarbeitung setzt den Status DRAFT voraus.
	// Der Aufrufer muss den Zustand neu prüfen statt blind zu wiederholen.
	ErrStoryNotDraft = errors.New("story is not in DRAFT status")
)

// ProcessResult ist das Ergebnis einer erfolgreichen Story-Verarbeitung.
type ProcessResult struct {
	StoryID     uint   `json:"story_id"`
	ChallengeID uint   `json:"challenge_id"`
	Status      string `json:"status"`
}

// DraftResult ist ein Eintrag des Batch-Ergebnisses: entweder ein
// ProcessResult oder eine Fehlermeldung pro Story.
type DraftResult struct {
	StoryID     uint   `json:"story_id"`
	ChallengeID uint   `json:"challenge_id,omitempty"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ProcessingService macht aus einer DRAFT-Story per Completion-Service
// Summary, Breakdown und eine verknüpfte Challenge.
//
// Zustandsmaschine: DRAFT --(start)--> PROCESSING --(ok)--> REVIEW,
// bei jedem Fehler zurück nach DRAFT. Inhalte werden erst bei Erfolg
// geschrieben; ein Abbruch hinterlässt keine Teilresultate.
type ProcessingService struct {
	DB     *gorm.DB
	LLM    llm.Client
	Logger *zap.Logger
}

// NewProcessingService erstellt eine neue Instanz des ProcessingService.
func NewProcessingService(db *gorm.DB, client llm.Client, logger *zap.Logger) *ProcessingService {
	return &ProcessingService{DB: db, LLM: client, Logger: logger}
}

// ProcessStory verarbeitet genau eine Story.
func (p *ProcessingService) ProcessStory(ctx context.Context, storyID uint) (*ProcessResult, error) {
	log := p.Logger.With(zap.Uint("story_id", storyID))

	var story models.Story
	if err := p.DB.First(&story, storyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}
	if story.Status != models.StatusDraft {
		return nil, fmt.Errorf("%w: story %d is %s", ErrStoryNotDraft, storyID, story.Status)
	}

	// Status-Flip nur, wenn die Story noch DRAFT ist. RowsAffected == 0
	// heißt: ein paralleler Lauf war schneller.
	res := p.DB.Model(&models.Story{}).
		Where("id = ? AND status = ?", storyID, models.StatusDraft).
		Update("status", models.StatusProcessing)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: story %d wurde bereits übernommen", ErrStoryNotDraft, storyID)
	}

	result, err := p.generate(ctx, &story)
	if err != nil {
		// Voller Rollback nach DRAFT, damit die Story erneut verarbeitet
		// werden kann. Nie im Status PROCESSING hängen lassen.
		if revertErr := p.DB.Model(&models.Story{}).
			Where("id = ?", storyID).
			Update("status", models.StatusDraft).Error; revertErr != nil {
			log.Error("Rollback nach DRAFT fehlgeschlagen", zap.Error(revertErr))
		}
		log.Warn("Story-Verarbeitung fehlgeschlagen", zap.Error(err))
		return nil, err
	}

	log.Info("Story verarbeitet", zap.Uint("challenge_id", result.ChallengeID))
	return result, nil
}

// generate führt die drei Generierungsschritte aus und schreibt das
// Ergebnis transaktional (Story-Update + Challenge-Insert).
func (p *ProcessingService) generate(ctx context.Context, story *models.Story) (*ProcessResult, error) {
	rawContent := story.RawContent
	if rawContent == "" {
		rawContent = story.Tagline
	}

	// Schritt 1: Summary. Keine strukturelle Validierung über non-empty hinaus.
	summary, err := p.LLM.Complete(ctx, summaryPrompt(story.Product, story.Tagline, rawContent))
	if err != nil {
		return nil, fmt.Errorf("summary-generierung: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, errors.New("summary-generierung: leere Antwort")
	}

	// Schritt 2: Breakdown, muss exakt 3 vollständige Abschnitte liefern.
	breakdown, err := p.generateBreakdown(ctx, story.Product, summary)
	if err != nil {
		return nil, err
	}

	// Schritt 3: Challenge mit genau einer richtigen Option.
	challengeData, err := p.generateChallenge(ctx, story.Product, summary, breakdown)
	if err != nil {
		return nil, err
	}

	breakdownJSON, err := marshalJSON(breakdown)
	if err != nil {
		return nil, err
	}
	optionsJSON, err := marshalJSON(challengeData.Options)
	if err != nil {
		return nil, err
	}

	challenge := models.Challenge{
		LinkedStoryID: story.ID,
		Skill:         challengeData.Skill,
		Question:      challengeData.Question,
		Options:       optionsJSON,
		Explanation:   challengeData.Explanation,
		Status:        models.StatusReview,
	}

	err = p.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Story{}).Where("id = ?", story.ID).Updates(map[string]interface{}{
			"summary":       summary,
			"breakdown":     breakdownJSON,
			"read_time_min": readTimeMin(summary),
			"status":        models.StatusReview,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&challenge).Error
	})
	if err != nil {
		return nil, err
	}

	return &ProcessResult{StoryID: story.ID, ChallengeID: challenge.ID, Status: models.StatusReview}, nil
}

func (p *ProcessingService) generateBreakdown(ctx context.Context, product, summary string) ([]models.BreakdownSection, error) {
	raw, err := p.LLM.Complete(ctx, breakdownPrompt(product, summary))
	if err != nil {
		return nil, fmt.Errorf("breakdown-generierung: %w", err)
	}

	extracted := llm.ExtractJSONArray(raw)
	if extracted == "" {
		return nil, errors.New("breakdown-generierung: kein JSON-Array in der Antwort")
	}

	var sections []models.BreakdownSection
	if err := json.Unmarshal([]byte(extracted), &sections); err != nil {
		return nil, fmt.Errorf("breakdown-generierung: ungültiges JSON: %w", err)
	}
	if len(sections) != 3 {
		return nil, fmt.Errorf("breakdown muss genau 3 abschnitte haben, erhalten: %d", len(sections))
	}
	for i, section := range sections {
		if strings.TrimSpace(section.Heading) == "" || strings.TrimSpace(section.Body) == "" {
			return nil, fmt.Errorf("breakdown-abschnitt %d ohne heading oder body", i+1)
		}
	}
	return sections, nil
}

// challengePayload ist die erwartete Form der dritten Completion-Antwort.
type challengePayload struct {
	Skill       string                   `json:"skill"`
	Question    string                   `json:"question"`
	Options     []models.ChallengeOption `json:"options"`
	Explanation string                   `json:"explanation"`
}

func (p *ProcessingService) generateChallenge(ctx context.Context, product, summary string, breakdown []models.BreakdownSection) (*challengePayload, error) {
	raw, err := p.LLM.Complete(ctx, challengePrompt(product, summary, breakdown))
	if err != nil {
		return nil, fmt.Errorf("challenge-generierung: %w", err)
	}

	extracted := llm.ExtractJSONObject(raw)
	if extracted == "" {
		return nil, errors.New("challenge-generierung: kein JSON-Objekt in der Antwort")
	}

	var payload challengePayload
	if err := json.Unmarshal([]byte(extracted), &payload); err != nil {
		return nil, fmt.Errorf("challenge-generierung: ungültiges JSON: %w", err)
	}

	if strings.TrimSpace(payload.Question) == "" || len(payload.Options) == 0 || strings.TrimSpace(payload.Explanation) == "" {
		return nil, errors.New("challenge braucht question, options und explanation")
	}
	correct := 0
	for _, opt := range payload.Options {
		if opt.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return nil, fmt.Errorf("challenge muss genau 1 richtige option haben, erhalten: %d", correct)
	}
	if !models.KnownSkill(payload.Skill) {
		payload.Skill = models.SkillStrategy
	}
	return &payload, nil
}

// ProcessAllDrafts verarbeitet bis zu 20 DRAFT-Stories mit Roh-Inhalt,
// neueste zuerst. Jede Story läuft unabhängig; ein Fehler blockiert die
// übrigen nicht.
func (p *ProcessingService) ProcessAllDrafts(ctx context.Context) []DraftResult {
	var drafts []models.Story
	if err := p.DB.
		Where("status = ? AND raw_content <> ''", models.StatusDraft).
		Order("created_at desc").
		Limit(maxDraftsPerBatch).
		Find(&drafts).Error; err != nil {
		p.Logger.Error("DRAFT-Abfrage fehlgeschlagen", zap.Error(err))
		return nil
	}

	results := make([]DraftResult, 0, len(drafts))
	for _, story := range drafts {
		res, err := p.ProcessStory(ctx, story.ID)
		if err != nil {
			results = append(results, DraftResult{StoryID: story.ID, Error: err.Error()})
			continue
		}
		results = append(results, DraftResult{StoryID: res.StoryID, ChallengeID: res.ChallengeID, Status: res.Status})
	}
	return results
}

// readTimeMin schätzt die Lesezeit: max(3, ceil(Wörter/200) + 3).
func readTimeMin(summary string) int {
	words := len(strings.Fields(summary))
	minutes := (words+199)/200 + 3
	if minutes < 3 {
		minutes = 3
	}
	return minutes
}
