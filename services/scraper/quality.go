package scraper

import (
	"regexp"
	"strings"
)

// Quality levels
const (
	Quality4K    = "4K"
	Quality1080p = "1080p"
	Quality720p  = "720p"
	Quality480p  = "480p"
	QualitySD    = "SD"
)

var qualityPatterns = []struct {
	quality string
	re      *regexp.Regexp
}{
	{Quality4K, regexp.MustCompile(`2160p|\b4k\b|\buhd\b`)},
	{Quality1080p, regexp.MustCompile(`1080p|\bfhd\b`)},
	{Quality720p, regexp.MustCompile(`720p`)},
	{Quality480p, regexp.MustCompile(`480p|576p`)},
	{QualitySD, regexp.MustCompile(`\b(dvdrip|dvdscr|camrip|hdcam|hdts|xvid|divx)\b`)},
}

// DetectQuality returns the best resolution tag named in s, or "" when none is.
func DetectQuality(s string) string {
	s = strings.ToLower(separatorPattern.ReplaceAllString(s, " "))
	for _, q := range qualityPatterns {
		if q.re.MatchString(s) {
			return q.quality
		}
	}
	return ""
}
