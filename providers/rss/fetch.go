package rss

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"product-pulse/providers"
)

// Fetcher liest einen benannten RSS-Feed (z.B. Newsletter) und normalisiert
// dessen Einträge. Pro konfiguriertem Feed existiert eine eigene Instanz.
type Fetcher struct {
	FeedURL    string
	SourceName string
	Logger     *zap.Logger

	parser *gofeed.Parser
}

// NewFetcher erstellt einen Fetcher für einen einzelnen Feed.
func NewFetcher(feedURL, sourceName string, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		FeedURL:    feedURL,
		SourceName: sourceName,
		Logger:     logger,
		parser:     gofeed.NewParser(),
	}
}

// Name gibt den konfigurierten Feed-Namen zurück. Der Name muss pro Feed
// eindeutig sein, weil Ingest-Ergebnisse darüber adressiert werden.
func (f *Fetcher) Name() string {
	return f.SourceName
}

// Fetch parst den Feed und liefert die normalisierten Einträge.
func (f *Fetcher) Fetch(ctx context.Context) ([]providers.Item, error) {
	feed, err := f.parser.ParseURLWithContext(f.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed %s nicht lesbar: %w", f.FeedURL, err)
	}

	items := make([]providers.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, normalizeEntry(entry, f.SourceName))
	}

	f.Logger.Info("RSS Fetch abgeschlossen",
		zap.String("feed", f.SourceName),
		zap.Int("count", len(items)))
	return items, nil
}

func normalizeEntry(entry *gofeed.Item, sourceName string) providers.Item {
	tagline := entry.Description
	if len(tagline) > 200 {
		tagline = tagline[:200]
	}

	raw := entry.Content
	if raw == "" {
		raw = entry.Description
	}

	category := "Uncategorized"
	var tags []string
	for i, c := range entry.Categories {
		if i == 0 {
			category = c
		}
		if i < 5 {
			tags = append(tags, c)
		}
	}

	// Link als stabile externe ID kodieren
	id := base64.StdEncoding.EncodeToString([]byte(entry.Link))
	if len(id) > 32 {
		id = id[:32]
	}

	return providers.Item{
		ExternalID: "rss-" + id,
		Product:    entry.Title,
		Tagline:    tagline,
		Source:     sourceName,
		SourceURL:  entry.Link,
		RawContent: raw,
		Category:   category,
		Tags:       tags,
	}
}
