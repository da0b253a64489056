package musicbrainz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franz/songsearch/internal/util"
)

// GenreSource looks up the genre of a recording
type GenreSource interface {
	RecordingGenre(ctx context.Context, recordingID string) (string, error)
}

// Cache provides database-backed caching for recording genre lookups.
// It reads and writes the mb_genre_cache table created by the store migrations.
type Cache struct {
	db     *sql.DB
	source GenreSource
}

// NewCache creates a new cache instance
func NewCache(db *sql.DB, source GenreSource) *Cache {
	return &Cache{
		db:     db,
		source: source,
	}
}

// RecordingGenre returns the genre of a recording, checking the cache first.
// A lookup that found no genre is cached too, so the recording is not
// queried again. Failed lookups are not cached.
func (c *Cache) RecordingGenre(ctx context.Context, recordingID string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(recordingID))
	if key == "" {
		return "", fmt.Errorf("recording id cannot be empty")
	}

	genre, found, err := c.getFromCache(key)
	if err != nil {
		util.DebugLog("MusicBrainz cache read failed: %v", err)
	} else if found {
		util.DebugLog("MusicBrainz cache hit: %s -> '%s'", key, genre)
		c.incrementHitCount(key)
		return genre, nil
	}

	util.DebugLog("MusicBrainz cache miss: %s, querying API", key)
	genre, err = c.source.RecordingGenre(ctx, recordingID)
	if err != nil {
		return "", err
	}

	if err := c.storeInCache(key, genre); err != nil {
		// Caching is best effort
		util.WarnLog("Failed to cache MusicBrainz genre: %v", err)
	}

	return genre, nil
}

func (c *Cache) getFromCache(recordingID string) (genre string, found bool, err error) {
	err = c.db.QueryRow(`SELECT genre FROM mb_genre_cache WHERE recording_id = ?`, recordingID).Scan(&genre)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}
	return genre, true, nil
}

func (c *Cache) storeInCache(recordingID, genre string) error {
	query := `
		INSERT INTO mb_genre_cache (recording_id, genre, cached_at, hit_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(recording_id) DO UPDATE SET genre = excluded.genre, cached_at = excluded.cached_at
	`

	if _, err := c.db.Exec(query, recordingID, genre, time.Now()); err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

func (c *Cache) incrementHitCount(recordingID string) {
	query := `UPDATE mb_genre_cache SET hit_count = hit_count + 1 WHERE recording_id = ?`
	if _, err := c.db.Exec(query, recordingID); err != nil {
		util.DebugLog("Failed to increment hit count: %v", err)
	}
}

// GetStats returns cache statistics
func (c *Cache) GetStats() (entries int, totalHits int64, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM mb_genre_cache`
	err = c.db.QueryRow(query).Scan(&entries, &totalHits)
	return
}

// ClearCache removes all cached entries
func (c *Cache) ClearCache() error {
	_, err := c.db.Exec("DELETE FROM mb_genre_cache")
	return err
}

// ClearOldEntries removes cache entries older than the specified duration
func (c *Cache) ClearOldEntries(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := c.db.Exec("DELETE FROM mb_genre_cache WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0, err
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}
