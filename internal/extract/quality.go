package extract

import (
	"strconv"
	"strings"
)

// Qualities are the supported request tiers.
var Qualities = []int{360, 480, 720, 1080}

func ValidQuality(q int) bool {
	for _, v := range Qualities {
		if v == q {
			return true
		}
	}
	return false
}

// NearestIndex picks the option minimizing |option - want|. Selection is by
// absolute distance, not "first at or above": a request for 600 against
// {360, 480, 720, 1080} lands on 480. Earlier entries win ties. Returns -1
// for an empty slice.
func NearestIndex(options []int, want int) int {
	best := -1
	bestDist := 0
	for i, q := range options {
		d := q - want
		if d < 0 {
			d = -d
		}
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// height parses rendition heights that arrive as 720, "720" or "720p"
// depending on the service. Unparseable values decode to 0 rather than
// failing the whole document.
type height int

func (h *height) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	s = strings.TrimSuffix(s, "p")
	n, err := strconv.Atoi(s)
	if err != nil {
		*h = 0
		return nil
	}
	*h = height(n)
	return nil
}
