package providers

import "context"

// Source identifiziert einen Content-Lieferanten. Die Menge ist geschlossen:
// unbekannte Quellen scheitern bei der Auflösung, nicht erst zur Laufzeit.
type Source string

const (
	SourceProductHunt Source = "producthunt"
	SourceRSS         Source = "rss"
)

// Item ist die normalisierte Form eines Kandidaten aus einer Quelle.
// Deduplizierung und Persistenz übernimmt der Ingest-Service.
type Item struct {
	ExternalID string   `json:"external_id"`
	Product    string   `json:"product"`
	Tagline    string   `json:"tagline"`
	Source     string   `json:"source"`
	SourceURL  string   `json:"source_url"`
	RawContent string   `json:"raw_content"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
}

// Provider ist das Interface, das jeder Quellen-Adapter implementieren muss.
type Provider interface {
	// Fetch liefert die normalisierten Kandidaten der Quelle.
	Fetch(ctx context.Context) ([]Item, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "producthunt").
	Name() string
}
