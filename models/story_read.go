package models

import "time"

// StoryRead markiert eine gelesene Story. Pro (user, story) genau ein
// Datensatz; der Unique-Index ist die einzige Concurrency-Absicherung
// und liefert At-most-once-Semantik bei parallelen Requests.
type StoryRead struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UserID  string `json:"user_id" gorm:"index:idx_story_reads_user_story,unique;not null"`
	StoryID uint   `json:"story_id" gorm:"index:idx_story_reads_user_story,unique;not null"`

	// Optionale Lesedauer für Analytics; wird nie nachträglich geändert
	DurationSec *int `json:"duration_sec,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (StoryRead) TableName() string {
	return "story_reads"
}
