package models

import "time"

// Edition bündelt die Stories und die Challenge eines Kalendertages.
// date ist UTC-Mitternacht und eindeutig; publishedAt bleibt null,
// bis die Edition veröffentlicht wurde. Stories und Challenges hängen
// über ihr editionDate an der Edition (Rückreferenz, kein Containment).
type Edition struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Date        time.Time  `json:"date" gorm:"uniqueIndex;not null"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Edition) TableName() string {
	return "editions"
}
