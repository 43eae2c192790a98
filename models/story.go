package models

import (
	"time"

	"gorm.io/datatypes"
)

// Lifecycle-Status für Stories und Challenges.
const (
	StatusDraft      = "DRAFT"
	StatusProcessing = "PROCESSING"
	StatusReview     = "REVIEW"
	StatusPublished  = "PUBLISHED"
)

// BreakdownSection ist ein Abschnitt der strategischen Analyse einer Story.
type BreakdownSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Story repräsentiert einen Produkt-Launch vom Ingest bis zur Veröffentlichung.
// summary und breakdown bleiben leer, bis die AI-Verarbeitung durchgelaufen ist.
type Story struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product   string         `json:"product" gorm:"index:idx_stories_product_source,unique;not null"`
	Tagline   string         `json:"tagline"`
	Source    string         `json:"source" gorm:"index:idx_stories_product_source,unique;not null"`
	SourceURL string         `json:"source_url,omitempty"`
	Category  string         `json:"category,omitempty" gorm:"index"`
	Tags      datatypes.JSON `json:"tags,omitempty" gorm:"type:jsonb"`

	// Roh-Inhalt aus der Quelle; Eingabe für die AI-Verarbeitung
	RawContent string `json:"raw_content,omitempty" gorm:"type:text"`

	// Von der AI erzeugter Inhalt
	Summary     string         `json:"summary" gorm:"type:text"`
	Breakdown   datatypes.JSON `json:"breakdown" gorm:"type:jsonb"`
	ReadTimeMin int            `json:"read_time_min"`

	EditionDate *time.Time `json:"edition_date,omitempty" gorm:"index"`
	Status      string     `json:"status" gorm:"index;default:'DRAFT'"`
}

// TableName gibt explizit den Tabellennamen an.
func (Story) TableName() string {
	return "stories"
}
