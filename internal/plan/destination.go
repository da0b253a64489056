package plan

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/franz/songsearch/internal/meta"
	"github.com/franz/songsearch/internal/util"
)

// DefaultTemplate lays files out as year/month/genre/artist.
const DefaultTemplate = "{year}/{month}/{genre}/{artist}/{artist} - {title}{ext}"

// MaxComponentLength is the maximum length, in characters, of one substituted value
const MaxComponentLength = 80

const (
	unknownValue = "Unknown"
	unknownMonth = "00"
)

var placeholders = map[string]bool{
	"year":   true,
	"month":  true,
	"genre":  true,
	"artist": true,
	"title":  true,
	"ext":    true,
}

// segment is either literal text or a placeholder name
type segment struct {
	isPlaceholder bool
	value         string
}

// Template is a parsed destination template. The template uses '/' as its
// separator whatever the host platform.
type Template struct {
	raw      string
	segments []segment
}

// ParseTemplate parses a template such as "{artist}/{title}{ext}".
// Literal braces are written "{{" and "}}".
func ParseTemplate(raw string) (*Template, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty template", util.ErrInvalidTemplate)
	}

	var segments []segment
	var current []rune
	inPlaceholder := false

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if !inPlaceholder && i+1 < len(runes) && (r == '{' || r == '}') && runes[i+1] == r {
			current = append(current, r)
			i++
			continue
		}

		switch {
		case r == '{' && !inPlaceholder:
			if len(current) > 0 {
				segments = append(segments, segment{value: string(current)})
				current = nil
			}
			inPlaceholder = true
		case r == '}' && inPlaceholder:
			name := string(current)
			if !placeholders[name] {
				return nil, fmt.Errorf("%w: unknown placeholder {%s}", util.ErrInvalidTemplate, name)
			}
			segments = append(segments, segment{isPlaceholder: true, value: name})
			current = nil
			inPlaceholder = false
		case r == '{' || r == '}':
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", util.ErrInvalidTemplate, r, i)
		default:
			current = append(current, r)
		}
	}

	if inPlaceholder {
		return nil, fmt.Errorf("%w: unclosed placeholder {%s", util.ErrInvalidTemplate, string(current))
	}
	if len(current) > 0 {
		segments = append(segments, segment{value: string(current)})
	}

	return &Template{raw: raw, segments: segments}, nil
}

func (t *Template) String() string {
	return t.raw
}

// Fill substitutes metadata into the template and returns the relative,
// '/'-separated result. Every value is sanitized on its own.
func (t *Template) Fill(m meta.Metadata, ext string) string {
	values := map[string]string{
		"year":   orDefault(m.Year, unknownValue),
		"month":  orDefault(m.Month, unknownMonth),
		"genre":  orDefault(m.Genre, unknownValue),
		"artist": orDefault(m.Artist, unknownValue),
		"title":  orDefault(m.Title, unknownValue),
	}

	var b strings.Builder
	for _, seg := range t.segments {
		switch {
		case !seg.isPlaceholder:
			b.WriteString(seg.value)
		case seg.value == "ext":
			b.WriteString(strings.ToLower(ext))
		default:
			b.WriteString(Sanitize(values[seg.value]))
		}
	}
	return b.String()
}

// Resolve returns the cleaned destination path under baseDir
func (t *Template) Resolve(baseDir string, m meta.Metadata, ext string) string {
	return filepath.Clean(filepath.Join(baseDir, filepath.FromSlash(t.Fill(m, ext))))
}

// BuildDestination resolves the destination of a file with the given
// metadata and extension. It is pure: nothing on disk is consulted.
func BuildDestination(baseDir string, m meta.Metadata, ext, template string) (string, error) {
	t, err := ParseTemplate(template)
	if err != nil {
		return "", err
	}
	return t.Resolve(baseDir, m, ext), nil
}

// Sanitize makes a single value safe to use inside a path: surrounding
// whitespace is trimmed, \ / : * ? " < > | become '_' and the result is cut
// to MaxComponentLength characters. A value made only of dots would name the
// current or parent directory, so its dots become '_' as well.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = illegalChars.Replace(s)
	if s != "" && strings.Trim(s, ".") == "" {
		s = strings.Repeat("_", len(s))
	}

	runes := []rune(s)
	if len(runes) > MaxComponentLength {
		s = string(runes[:MaxComponentLength])
	}
	return s
}

var illegalChars = strings.NewReplacer(
	`\`, "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
