// Package meta reads song metadata from embedded tags and defines the
// Metadata shape shared by the tag reader, the enricher and the planner.
package meta

import (
	"strings"
)

// Metadata is the set of fields used to catalogue and place a song.
// An empty string means the value is absent.
type Metadata struct {
	Title         string
	Artist        string
	Album         string
	Year          string // four digits, as tagged
	Month         string // zero-padded to two digits
	Genre         string
	RecordingID   string // MusicBrainz recording id
	FingerprintID string // AcoustID track id
}

// IsEmpty reports whether no field carries a value
func (m Metadata) IsEmpty() bool {
	return m == Metadata{}
}

// Merge returns local with every non-empty field of enrichment laid on top.
// Empty enrichment fields never clobber local values.
func Merge(local, enrichment Metadata) Metadata {
	out := local
	override := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	override(&out.Title, enrichment.Title)
	override(&out.Artist, enrichment.Artist)
	override(&out.Album, enrichment.Album)
	override(&out.Year, enrichment.Year)
	override(&out.Month, enrichment.Month)
	override(&out.Genre, enrichment.Genre)
	override(&out.RecordingID, enrichment.RecordingID)
	override(&out.FingerprintID, enrichment.FingerprintID)
	return out
}

// ParseDate splits a tag date such as "1999", "1999-7", "1999/07" or
// "2015-03-01" into a year and a zero-padded month. Missing parts are "".
func ParseDate(s string) (year, month string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}

	parts := strings.Split(strings.ReplaceAll(s, "/", "-"), "-")
	year = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		month = strings.TrimSpace(parts[1])
		if len(month) == 1 {
			month = "0" + month
		}
	}
	return year, month
}

// ParseDateList parses the first value of a multi-valued date tag
func ParseDateList(values []string) (year, month string) {
	if len(values) == 0 {
		return "", ""
	}
	return ParseDate(values[0])
}
