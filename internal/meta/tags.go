package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	flac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacvorbis"

	"github.com/franz/songsearch/internal/util"
)

// Tag keys understood by the reader. Sources report values under these
// lower-case names whatever the underlying container calls them.
const (
	KeyTitle        = "title"
	KeyArtist       = "artist"
	KeyAlbum        = "album"
	KeyGenre        = "genre"
	KeyDate         = "date"
	KeyOriginalDate = "originaldate"
	KeyYear         = "year"
	KeyRecordingID  = "musicbrainz_trackid"
)

// Source extracts raw tag values from one kind of file.
// A nil map with a nil error means the source has nothing to say about the file.
type Source interface {
	Name() string
	Read(path string) (map[string][]string, error)
}

// TagReader reads Metadata from a file by merging its Sources in order.
// The first source that reports a key wins.
type TagReader struct {
	sources []Source
}

// NewTagReader returns a reader over the given sources, or the default set
// (ID3v2 for MP3, Vorbis comments for FLAC, dhowden/tag for everything) when none are given.
func NewTagReader(sources ...Source) *TagReader {
	if len(sources) == 0 {
		sources = []Source{ID3Source{}, FLACSource{}, GenericSource{}}
	}
	return &TagReader{sources: sources}
}

// Read returns the tagged metadata of path. Missing, unreadable or untagged
// files yield empty Metadata; the returned error is always nil.
func (r *TagReader) Read(path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		util.DebugLog("Tags: cannot stat %s: %v", path, err)
		return Metadata{}, nil
	}
	if !info.Mode().IsRegular() {
		util.DebugLog("Tags: %s is not a regular file", path)
		return Metadata{}, nil
	}

	raw := make(map[string][]string)
	for _, src := range r.sources {
		values, err := readSource(src, path)
		if err != nil {
			util.DebugLog("Tags: %s source failed for %s: %v", src.Name(), path, err)
			continue
		}
		for k, v := range values {
			if _, seen := raw[k]; !seen && len(v) > 0 && v[0] != "" {
				raw[k] = v
			}
		}
	}

	return FromRaw(raw), nil
}

// readSource runs one source, turning a parser panic into an error.
// Some tag libraries panic on truncated frames.
func readSource(src Source, path string) (values map[string][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while reading tags: %v", r)
		}
	}()
	return src.Read(path)
}

// FromRaw builds Metadata from raw tag values. The first value of each
// list is used; dates are taken from date, originaldate, then year.
func FromRaw(raw map[string][]string) Metadata {
	first := func(key string) string {
		if v := raw[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	m := Metadata{
		Title:       first(KeyTitle),
		Artist:      first(KeyArtist),
		Album:       first(KeyAlbum),
		Genre:       first(KeyGenre),
		RecordingID: first(KeyRecordingID),
	}

	for _, key := range []string{KeyDate, KeyOriginalDate, KeyYear} {
		if first(key) != "" {
			m.Year, m.Month = ParseDateList(raw[key])
			break
		}
	}

	return m
}

// GenericSource reads tags from any container dhowden/tag understands
type GenericSource struct{}

func (GenericSource) Name() string { return "tag" }

func (GenericSource) Read(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	put := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			out[key] = append(out[key], value)
		}
	}

	put(KeyTitle, m.Title())
	put(KeyArtist, m.Artist())
	put(KeyAlbum, m.Album())
	put(KeyGenre, m.Genre())

	// Vorbis-style containers keep full dates in the raw map
	for rawKey, value := range m.Raw() {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(rawKey) {
		case KeyDate, "tdrc":
			put(KeyDate, s)
		case KeyOriginalDate, "tdor":
			put(KeyOriginalDate, s)
		}
	}
	if m.Year() > 0 {
		put(KeyYear, strconv.Itoa(m.Year()))
	}

	return out, nil
}

// ID3Source reads ID3v2 frames from MP3 files
type ID3Source struct{}

func (ID3Source) Name() string { return "id3v2" }

var id3Frames = map[string]string{
	"TIT2": KeyTitle,
	"TPE1": KeyArtist,
	"TALB": KeyAlbum,
	"TCON": KeyGenre,
	"TDRC": KeyDate,
	"TDOR": KeyOriginalDate,
	"TORY": KeyOriginalDate,
	"TYER": KeyYear,
}

func (ID3Source) Read(path string) (map[string][]string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".mp3" {
		return nil, nil
	}

	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, err
	}
	defer id3tag.Close()

	out := make(map[string][]string)
	for frameID, key := range id3Frames {
		frames := id3tag.GetFrames(frameID)
		if len(frames) == 0 {
			continue
		}
		tf, ok := frames[0].(id3v2.TextFrame)
		if !ok || tf.Text == "" {
			continue
		}
		// ID3v2.4 separates multiple values with NUL
		for _, v := range strings.Split(tf.Text, "\x00") {
			if v = strings.TrimSpace(v); v != "" {
				out[key] = append(out[key], v)
			}
		}
	}

	for _, frame := range id3tag.GetFrames("UFID") {
		if ufid, ok := frame.(id3v2.UFIDFrame); ok && ufid.OwnerIdentifier == "http://musicbrainz.org" {
			out[KeyRecordingID] = []string{string(ufid.Identifier)}
			break
		}
	}

	return out, nil
}

// FLACSource reads Vorbis comments from FLAC files
type FLACSource struct{}

func (FLACSource) Name() string { return "flac" }

func (FLACSource) Read(path string) (map[string][]string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".flac" {
		return nil, nil
	}

	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, err
	}

	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmts, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return nil, err
		}
		return vorbisComments(cmts.Comments), nil
	}
	return nil, nil
}

// vorbisComments turns "KEY=value" comments into a multi-valued map
// with lower-cased keys.
func vorbisComments(comments []string) map[string][]string {
	out := make(map[string][]string)
	for _, c := range comments {
		key, value, ok := strings.Cut(c, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if value = strings.TrimSpace(value); value != "" {
			out[key] = append(out[key], value)
		}
	}
	return out
}
