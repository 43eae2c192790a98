package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"product-pulse/config"
	"product-pulse/models"
	"product-pulse/providers"
	"product-pulse/storage"
)

// IngestResult fasst einen Ingest-Lauf zusammen. Fehler einzelner Items
// brechen den Lauf nicht ab, sondern landen in Errors.
type IngestResult struct {
	Ingested int      `json:"ingested"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// IngestService zieht Kandidaten aus den Quellen-Adaptern, dedupliziert
// gegen den Bestand und legt neue Stories als DRAFT an.
type IngestService struct {
	Config    *config.Config
	DB        *gorm.DB
	S3Client  *s3.Client
	Logger    *zap.Logger
	Providers []providers.Provider
}

// NewIngestService erstellt eine neue Instanz des IngestService.
// s3Client darf nil sein; dann werden keine Snapshots geschrieben.
func NewIngestService(cfg *config.Config, db *gorm.DB, s3Client *s3.Client, logger *zap.Logger, provs []providers.Provider) *IngestService {
	return &IngestService{
		Config:    cfg,
		DB:        db,
		S3Client:  s3Client,
		Logger:    logger,
		Providers: provs,
	}
}

// Run führt einen Ingest-Lauf für einen einzelnen Provider aus.
func (s *IngestService) Run(ctx context.Context, provider providers.Provider) (*IngestResult, error) {
	log := s.Logger.With(zap.String("source", provider.Name()))
	log.Info("Starte Ingest-Lauf.")

	items, err := provider.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch von %s fehlgeschlagen: %w", provider.Name(), err)
	}

	s.snapshot(ctx, provider.Name(), items)

	result := &IngestResult{Errors: []string{}}
	for _, item := range items {
		if err := s.ingestItem(item); err != nil {
			if errors.Is(err, errDuplicate) {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to ingest %s: %v", item.Product, err))
			continue
		}
		result.Ingested++
	}

	log.Info("Ingest-Lauf abgeschlossen",
		zap.Int("ingested", result.Ingested),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// RunAll führt der Reihe nach alle konfigurierten Provider aus (Cron-Einstieg).
// Fehler eines Providers blockieren die übrigen nicht.
func (s *IngestService) RunAll(ctx context.Context) map[string]*IngestResult {
	results := make(map[string]*IngestResult, len(s.Providers))
	for _, p := range s.Providers {
		res, err := s.Run(ctx, p)
		if err != nil {
			s.Logger.Error("Provider-Ingest fehlgeschlagen", zap.String("source", p.Name()), zap.Error(err))
			results[p.Name()] = &IngestResult{Errors: []string{err.Error()}}
			continue
		}
		results[p.Name()] = res
	}
	return results
}

var errDuplicate = errors.New("duplicate story")

// ingestItem legt eine neue DRAFT-Story an, sofern (product, source) noch
// nicht existiert. Dedup ist exakter String-Vergleich, kein Fuzzy-Matching.
func (s *IngestService) ingestItem(item providers.Item) error {
	var existing models.Story
	err := s.DB.Where("product = ? AND source = ?", item.Product, item.Source).First(&existing).Error
	if err == nil {
		return errDuplicate
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	tags, err := marshalJSON(item.Tags)
	if err != nil {
		return err
	}

	story := models.Story{
		Product:    item.Product,
		Tagline:    item.Tagline,
		Source:     item.Source,
		SourceURL:  item.SourceURL,
		Category:   item.Category,
		Tags:       tags,
		RawContent: item.RawContent,
		Summary:    "",
		Breakdown:  datatypes.JSON("[]"),
		Status:     models.StatusDraft,
	}
	if err := s.DB.Create(&story).Error; err != nil {
		// Unique-Index auf (product, source): ein paralleler Lauf hat
		// dasselbe Item bereits angelegt.
		var raced models.Story
		if lookupErr := s.DB.Where("product = ? AND source = ?", item.Product, item.Source).First(&raced).Error; lookupErr == nil {
			return errDuplicate
		}
		return err
	}
	return nil
}

// snapshot schreibt die Roh-Items nach S3, wenn konfiguriert. Best effort.
func (s *IngestService) snapshot(ctx context.Context, sourceName string, items []providers.Item) {
	if s.S3Client == nil || s.Config.IngestSnapshotBucket == "" || len(items) == 0 {
		return
	}
	key, err := storage.UploadIngestSnapshot(ctx, s.S3Client, s.Config.IngestSnapshotBucket, sourceName, items)
	if err != nil {
		s.Logger.Warn("Ingest-Snapshot konnte nicht hochgeladen werden", zap.Error(err))
		return
	}
	s.Logger.Info("Ingest-Snapshot hochgeladen", zap.String("key", key))
}
