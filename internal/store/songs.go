package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/franz/songsearch/internal/util"
)

// Move statuses recorded on songs
const (
	MoveStatusPlanned = "planned"
	MoveStatusMoved   = "moved"
	MoveStatusFailed  = "failed"
)

// Song is one indexed audio file. Empty strings and zero values mean absent
// and are stored as NULL.
type Song struct {
	ID            int64
	Name          string
	Artist        string
	Title         string
	Album         string
	Year          string
	Month         string
	Genre         string
	Path          string
	Duration      float64
	FileFormat    string
	Size          int64
	ModifiedDate  time.Time
	MBRecordingID string
	AcoustID      string
	OriginalPath  string
	ProposedPath  string
	FinalPath     string
	MoveStatus    string
	InsertedAt    time.Time
}

// SearchRow is the projection of a song used for fuzzy matching
type SearchRow struct {
	ID     int64
	Name   string
	Artist string
	Title  string
	Path   string
}

const songColumns = `
	id, COALESCE(name, ''), COALESCE(artist, ''), COALESCE(title, ''),
	COALESCE(album, ''), COALESCE(year, ''), COALESCE(month, ''), COALESCE(genre, ''),
	path, COALESCE(duration, 0), COALESCE(file_format, ''), COALESCE(size, 0),
	modified_date, COALESCE(mb_recording_id, ''), COALESCE(acoustid, ''),
	COALESCE(original_path, ''), COALESCE(proposed_path, ''), COALESCE(final_path, ''),
	COALESCE(move_status, ''), inserted_at`

const insertSong = `
	INSERT INTO songs (
		name, artist, title, album, year, month, genre, path,
		duration, file_format, size, modified_date, mb_recording_id, acoustid
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO NOTHING`

func songArgs(song *Song) []any {
	return []any{
		nullString(song.Name), nullString(song.Artist), nullString(song.Title),
		nullString(song.Album), nullString(song.Year), nullString(song.Month),
		nullString(song.Genre), song.Path,
		nullFloat(song.Duration), nullString(song.FileFormat), nullInt(song.Size),
		nullTime(song.ModifiedDate), nullString(song.MBRecordingID), nullString(song.AcoustID),
	}
}

// InsertOrIgnore adds song to the catalogue. A song whose path is already
// catalogued is silently ignored and inserted is false.
func (s *Store) InsertOrIgnore(song *Song) (inserted bool, err error) {
	if song.Path == "" {
		return false, fmt.Errorf("song path is required")
	}

	result, err := s.db.Exec(insertSong, songArgs(song)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert song: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if id, err := result.LastInsertId(); err == nil {
		song.ID = id
	}
	return true, nil
}

// InsertBatch inserts songs in a single transaction and returns how many
// were new. Existing paths are skipped.
func (s *Store) InsertBatch(songs []*Song) (int, error) {
	if len(songs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(insertSong)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, song := range songs {
			if song.Path == "" {
				continue
			}
			result, err := stmt.Exec(songArgs(song)...)
			if err != nil {
				return fmt.Errorf("failed to insert song %s: %w", song.Path, err)
			}
			if n, _ := result.RowsAffected(); n > 0 {
				inserted++
				if id, err := result.LastInsertId(); err == nil {
					song.ID = id
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetByPath retrieves a song by its path. Returns util.ErrNotFound if absent.
func (s *Store) GetByPath(path string) (*Song, error) {
	return s.getOne("SELECT "+songColumns+" FROM songs WHERE path = ?", path)
}

// GetByID retrieves a song by id. Returns util.ErrNotFound if absent.
func (s *Store) GetByID(id int64) (*Song, error) {
	return s.getOne("SELECT "+songColumns+" FROM songs WHERE id = ?", id)
}

func (s *Store) getOne(query string, arg any) (*Song, error) {
	song, err := scanSong(s.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, util.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get song: %w", err)
	}
	return song, nil
}

// ListSongs returns up to limit songs ordered by id. limit <= 0 returns all.
func (s *Store) ListSongs(limit int) ([]*Song, error) {
	query := "SELECT " + songColumns + " FROM songs ORDER BY id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, song)
	}

	return songs, rows.Err()
}

// FetchAllForSearch returns every song's searchable columns
func (s *Store) FetchAllForSearch() ([]SearchRow, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(name, ''), COALESCE(artist, ''), COALESCE(title, ''), path
		FROM songs ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Artist, &r.Title, &r.Path); err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// UpdateLocationByID points the song with the given id at newPath
func (s *Store) UpdateLocationByID(id int64, newPath string) (int64, error) {
	return s.exec("UPDATE songs SET path = ? WHERE id = ?", newPath, id)
}

// UpdateLocationByName points every song with the given file name at newPath
func (s *Store) UpdateLocationByName(name, newPath string) (int64, error) {
	return s.exec("UPDATE songs SET path = ? WHERE name = ?", newPath, name)
}

// UpdateLocation resolves ref as a song id when it is numeric and matches a
// row, and as a file name otherwise. It returns the number of rows updated.
func (s *Store) UpdateLocation(ref, newPath string) (int64, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		n, err := s.UpdateLocationByID(id, newPath)
		if err != nil || n > 0 {
			return n, err
		}
	}
	return s.UpdateLocationByName(ref, newPath)
}

// RecordPlan stores the proposed destination of a catalogued song
func (s *Store) RecordPlan(path, proposedPath string) (int64, error) {
	return s.exec(`
		UPDATE songs SET original_path = path, proposed_path = ?, move_status = ?
		WHERE path = ?
	`, proposedPath, MoveStatusPlanned, path)
}

// MarkMoved records the outcome of moving the song at originalPath.
// On success the song's path follows the file.
func (s *Store) MarkMoved(originalPath, finalPath, status string) (int64, error) {
	if status == MoveStatusMoved {
		return s.exec(`
			UPDATE songs SET original_path = path, path = ?, final_path = ?, move_status = ?
			WHERE path = ?
		`, finalPath, finalPath, status, originalPath)
	}
	return s.exec("UPDATE songs SET move_status = ? WHERE path = ?", status, originalPath)
}

// ClearAll removes every song from the catalogue
func (s *Store) ClearAll() error {
	if _, err := s.db.Exec("DELETE FROM songs"); err != nil {
		return fmt.Errorf("failed to clear songs: %w", err)
	}
	return nil
}

// Count returns the number of catalogued songs
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM songs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

// CountByMoveStatus returns the number of songs per move status.
// Songs never planned are counted under "".
func (s *Store) CountByMoveStatus() (map[string]int, error) {
	rows, err := s.db.Query("SELECT COALESCE(move_status, ''), COUNT(*) FROM songs GROUP BY 1")
	if err != nil {
		return nil, fmt.Errorf("failed to count move statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan move status: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) exec(query string, args ...any) (int64, error) {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update songs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (*Song, error) {
	song := &Song{}
	var modified sql.NullTime
	err := row.Scan(
		&song.ID, &song.Name, &song.Artist, &song.Title,
		&song.Album, &song.Year, &song.Month, &song.Genre,
		&song.Path, &song.Duration, &song.FileFormat, &song.Size,
		&modified, &song.MBRecordingID, &song.AcoustID,
		&song.OriginalPath, &song.ProposedPath, &song.FinalPath,
		&song.MoveStatus, &song.InsertedAt,
	)
	if err != nil {
		return nil, err
	}
	if modified.Valid {
		song.ModifiedDate = modified.Time
	}
	return song, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
