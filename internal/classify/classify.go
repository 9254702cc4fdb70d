package classify

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"curator/internal/catalog"
)

// Identity is the classification result for a single filename.
type Identity struct {
	MediaType  catalog.MediaType
	Title      string
	SeriesName string
	Season     int
	Episode    int
}

// Ordered TV episode patterns; the first match wins.
var tvPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(.+?)[\s._-]*\bS(\d+)E(\d+)\b`),
	regexp.MustCompile(`(?i)(.+?)[\s._-]*\b(\d+)x(\d+)\b`),
	regexp.MustCompile(`(?i)(.+?)[\s._-]*\bSeason[\s.](\d+)[\s.]Episode[\s.](\d+)\b`),
}

var (
	yearToken    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	qualityToken = regexp.MustCompile(`(?i)\b(720p|1080p|4K|BluRay|DVDRip|WEBRip|x264|x265|HEVC)\b`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Classify maps a filename to its media identity. The extension is ignored.
func Classify(filename string) Identity {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	for _, pattern := range tvPatterns {
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		series := cleanSeparators(match[1])
		season, _ := strconv.Atoi(match[2])
		episode, _ := strconv.Atoi(match[3])
		return Identity{
			MediaType:  catalog.MediaTypeTV,
			Title:      fmt.Sprintf("%s S%02dE%02d", series, season, episode),
			SeriesName: series,
			Season:     season,
			Episode:    episode,
		}
	}

	title := cleanSeparators(name)
	title = yearToken.ReplaceAllString(title, "")
	title = qualityToken.ReplaceAllString(title, "")
	title = strings.TrimSpace(whitespace.ReplaceAllString(title, " "))

	return Identity{
		MediaType: catalog.MediaTypeMovie,
		Title:     title,
	}
}

func cleanSeparators(value string) string {
	value = strings.ReplaceAll(value, ".", " ")
	value = strings.ReplaceAll(value, "_", " ")
	return strings.TrimSpace(value)
}
