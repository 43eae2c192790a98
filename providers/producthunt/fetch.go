package producthunt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"product-pulse/config"
	"product-pulse/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher kapselt die Interaktion mit der Product Hunt GraphQL-API (v2).
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des Product-Hunt-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return string(providers.SourceProductHunt)
}

// Fetch holt die Launches seit PRODUCT_HUNT_DAYS_BACK und normalisiert sie.
func (f *Fetcher) Fetch(ctx context.Context) ([]providers.Item, error) {
	if f.Config.ProductHuntToken == "" {
		return nil, fmt.Errorf("PRODUCT_HUNT_TOKEN ist nicht gesetzt")
	}

	postedAfter := time.Now().UTC().AddDate(0, 0, -f.Config.ProductHuntDaysBack).Format(time.RFC3339)
	query := fmt.Sprintf(`{
  posts(order: VOTES, postedAfter: %q) {
    edges {
      node {
        id name tagline description url
        topics { edges { node { name } } }
        votesCount
      }
    }
  }
}`, postedAfter)

	body, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Config.ProductHuntBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.Config.ProductHuntToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product hunt request fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("product hunt antwortete mit status %d: %s", resp.StatusCode, raw)
	}

	var parsed graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("product hunt antwort nicht lesbar: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("product hunt graphql fehler: %s", parsed.Errors[0].Message)
	}

	items := make([]providers.Item, 0, len(parsed.Data.Posts.Edges))
	for _, edge := range parsed.Data.Posts.Edges {
		node := edge.Node

		category := "Uncategorized"
		var tags []string
		for i, t := range node.Topics.Edges {
			if i == 0 {
				category = t.Node.Name
			}
			if i < 5 {
				tags = append(tags, t.Node.Name)
			}
		}

		items = append(items, providers.Item{
			ExternalID: "ph-" + node.ID,
			Product:    node.Name,
			Tagline:    node.Tagline,
			Source:     string(providers.SourceProductHunt),
			SourceURL:  node.URL,
			RawContent: node.Description,
			Category:   category,
			Tags:       tags,
		})
	}

	f.Logger.Info("Product Hunt Fetch abgeschlossen", zap.Int("count", len(items)))
	return items, nil
}
