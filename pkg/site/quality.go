package site

import (
	"regexp"
	"strconv"
	"strings"

	"mediamirror/pkg/models"
)

var (
	digitsRe = regexp.MustCompile(`[0-9]+`)
	linesRe  = regexp.MustCompile(`(?i)\b([0-9]+)\s*p\b`)
	kRe      = regexp.MustCompile(`(?i)\b([0-9]+)\s*k\b`)
)

// Resolution reads the vertical resolution from a quality label. The number
// before a "p" marker wins, then a "K" marker (4K is 2160), then the first
// integer in the label. It is 0 when the label has no number.
//
// Labels may carry other numbers such as file sizes ("HD 1080p (900 MB)"),
// so the largest number is not a resolution.
func Resolution(label string) int {
	if m := linesRe.FindStringSubmatch(label); m != nil {
		return atoi(m[1])
	}
	if m := kRe.FindStringSubmatch(label); m != nil {
		return atoi(m[1]) * 540
	}
	return atoi(digitsRe.FindString(label))
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// BestQuality picks the download with the highest resolution, ignoring photo
// sets. Ties go to the earlier entry. ok is false when nothing but photos
// remain.
func BestQuality(downloads []models.Link) (best models.Link, ok bool) {
	bestRes := -1
	for _, d := range downloads {
		if strings.Contains(strings.ToLower(d.Item), "photo") {
			continue
		}
		if res := Resolution(d.Item); res > bestRes {
			best, bestRes, ok = d, res, true
		}
	}
	return best, ok
}
