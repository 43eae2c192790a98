package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Skill-Kategorien für Challenges.
const (
	SkillStrategy     = "STRATEGY"
	SkillGrowth       = "GROWTH"
	SkillMonetization = "MONETIZATION"
	SkillUX           = "UX"
	SkillAnalytics    = "ANALYTICS"
)

// KnownSkill meldet, ob s eine der definierten Skill-Kategorien ist.
func KnownSkill(s string) bool {
	switch s {
	case SkillStrategy, SkillGrowth, SkillMonetization, SkillUX, SkillAnalytics:
		return true
	}
	return false
}

// ChallengeOption ist eine Antwortmöglichkeit (a-d) einer Challenge.
type ChallengeOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Challenge ist eine Multiple-Choice-Frage, verknüpft mit einer Story.
// Die Verknüpfung ist eine Referenz, kein Besitz: die Story kann die
// Challenge überdauern.
type Challenge struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LinkedStoryID uint   `json:"linked_story_id" gorm:"index"`
	Skill         string `json:"skill" gorm:"index;default:'STRATEGY'"`

	Question    string         `json:"question" gorm:"type:text;not null"`
	Options     datatypes.JSON `json:"options" gorm:"type:jsonb"`
	Explanation string         `json:"explanation" gorm:"type:text"`

	EditionDate *time.Time `json:"edition_date,omitempty" gorm:"index"`
	Status      string     `json:"status" gorm:"index;default:'REVIEW'"`
}

// TableName gibt explizit den Tabellennamen an.
func (Challenge) TableName() string {
	return "challenges"
}

// DecodeOptions parst das options-JSON in typisierte Antwortmöglichkeiten.
func (c *Challenge) DecodeOptions() ([]ChallengeOption, error) {
	var opts []ChallengeOption
	if err := json.Unmarshal(c.Options, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// CorrectOption liefert die als richtig markierte Antwortmöglichkeit.
func (c *Challenge) CorrectOption() (ChallengeOption, error) {
	opts, err := c.DecodeOptions()
	if err != nil {
		return ChallengeOption{}, err
	}
	for _, opt := range opts {
		if opt.IsCorrect {
			return opt, nil
		}
	}
	return ChallengeOption{}, nil
}
