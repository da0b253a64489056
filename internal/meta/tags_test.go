package meta

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeSource struct {
	name   string
	values map[string][]string
	err    error
	panics bool
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Read(string) (map[string][]string, error) {
	if f.panics {
		panic("truncated frame")
	}
	return f.values, f.err
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func TestFromRawDatePriority(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string][]string
		wantYear  string
		wantMonth string
	}{
		{
			name:      "date wins",
			raw:       map[string][]string{"date": {"2015-03-01"}, "originaldate": {"1990-01"}, "year": {"1980"}},
			wantYear:  "2015",
			wantMonth: "03",
		},
		{
			name:      "originaldate fallback",
			raw:       map[string][]string{"originaldate": {"1990/1"}, "year": {"1980"}},
			wantYear:  "1990",
			wantMonth: "01",
		},
		{
			name:     "year fallback",
			raw:      map[string][]string{"date": {""}, "year": {"1980"}},
			wantYear: "1980",
		},
		{
			name: "no date",
			raw:  map[string][]string{"title": {"Song"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := FromRaw(tt.raw)
			if m.Year != tt.wantYear || m.Month != tt.wantMonth {
				t.Errorf("FromRaw date = (%q, %q), want (%q, %q)", m.Year, m.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestFromRawFirstValue(t *testing.T) {
	m := FromRaw(map[string][]string{
		"title":  {"First", "Second"},
		"artist": {" Queen "},
		"genre":  {"Rock", "Pop"},
	})

	if m.Title != "First" || m.Artist != "Queen" || m.Genre != "Rock" {
		t.Errorf("FromRaw = %+v", m)
	}
}

func TestTagReaderMergesSourcesInOrder(t *testing.T) {
	path := writeFile(t, "song.mp3", []byte("not really audio"))

	reader := NewTagReader(
		fakeSource{name: "broken", err: errors.New("bad header")},
		fakeSource{name: "panics", panics: true},
		fakeSource{name: "first", values: map[string][]string{"title": {"From First"}}},
		fakeSource{name: "second", values: map[string][]string{"title": {"From Second"}, "artist": {"Artist"}}},
	)

	m, err := reader.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if m.Title != "From First" {
		t.Errorf("Title = %q, want From First", m.Title)
	}
	if m.Artist != "Artist" {
		t.Errorf("Artist = %q, want Artist", m.Artist)
	}
}

func TestTagReaderUnreadableFileIsEmpty(t *testing.T) {
	for _, name := range []string{"garbage.mp3", "garbage.flac", "garbage.ogg"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, []byte("definitely not a tagged file"))

			m, err := NewTagReader().Read(path)
			if err != nil {
				t.Fatalf("Read returned error for unparsable file: %v", err)
			}
			if !m.IsEmpty() {
				t.Errorf("Read = %+v, want empty metadata", m)
			}
		})
	}
}

func TestTagReaderMissingOrDirectoryIsEmpty(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{dir, filepath.Join(dir, "missing.mp3")} {
		m, err := NewTagReader().Read(path)
		if err != nil {
			t.Errorf("Read(%s) returned error: %v", path, err)
		}
		if !m.IsEmpty() {
			t.Errorf("Read(%s) = %+v, want empty metadata", path, m)
		}
	}
}

func TestVorbisComments(t *testing.T) {
	got := vorbisComments([]string{"TITLE=Song", "ARTIST=A", "ARTIST=B", "broken", "DATE=1999-07"})

	if len(got["artist"]) != 2 || got["artist"][1] != "B" {
		t.Errorf("artist = %v", got["artist"])
	}
	if got["title"][0] != "Song" || got["date"][0] != "1999-07" {
		t.Errorf("comments = %v", got)
	}
	if _, ok := got["broken"]; ok {
		t.Error("comment without '=' should be skipped")
	}
}
