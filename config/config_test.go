package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	cfg := Config{DBHost: "localhost", DBPort: 5432, DBUser: "pulse", DBPassword: "secret", DBName: "product_pulse"}
	assert.Equal(t,
		"host=localhost user=pulse password=secret dbname=product_pulse port=5432 sslmode=disable",
		cfg.DSN())
}

func TestParseRSSFeeds(t *testing.T) {
	cfg := Config{RSSFeeds: "TechCrunch|https://techcrunch.com/feed/, Verge|https://theverge.com/rss"}
	feeds := cfg.ParseRSSFeeds()
	require.Len(t, feeds, 2)
	assert.Equal(t, RSSFeed{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"}, feeds[0])
	assert.Equal(t, RSSFeed{Name: "Verge", URL: "https://theverge.com/rss"}, feeds[1])
}

func TestParseRSSFeedsSkipsMalformedEntries(t *testing.T) {
	cfg := Config{RSSFeeds: "NoURL, |, OnlyName|, Good|https://example.com/feed"}
	feeds := cfg.ParseRSSFeeds()
	require.Len(t, feeds, 1)
	assert.Equal(t, "Good", feeds[0].Name)
}

func TestParseRSSFeedsEmpty(t *testing.T) {
	cfg := Config{}
	assert.Empty(t, cfg.ParseRSSFeeds())
}

func TestS3Enabled(t *testing.T) {
	assert.False(t, (&Config{}).S3Enabled())
	assert.False(t, (&Config{S3URL: "https://s3.example.com"}).S3Enabled())
	assert.True(t, (&Config{S3URL: "https://s3.example.com", S3Key: "k", S3Secret: "s"}).S3Enabled())
}
