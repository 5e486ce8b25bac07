package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	digitRunRegex = regexp.MustCompile(`\d+`)

	// a number directly followed by an area unit
	areaRegex = regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(mq|m²|m2|ha|ettari)(?:[^a-z0-9]|$)`)

	// 1.200 or 12.000.000 style grouping
	thousandsRegex = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
)

const (
	builtKeyword = "mq"
	landKeyword  = "terreno"
)

// ExtractNumber strips thousands separators and returns the first integer
// run in text, or 0 when there is none.
func ExtractNumber(text string) int64 {
	clean := strings.NewReplacer(".", "", ",", "").Replace(text)
	m := digitRunRegex.FindString(clean)
	if m == "" {
		return 0
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

type areaMatch struct {
	start   int
	value   float64
	hectare bool
}

func findAreas(text string) []areaMatch {
	var out []areaMatch
	for _, idx := range areaRegex.FindAllStringSubmatchIndex(text, -1) {
		num := text[idx[2]:idx[3]]
		unit := text[idx[4]:idx[5]]
		hectare := unit == "ha" || unit == "ettari"
		v, ok := parseAreaValue(num, hectare)
		if !ok {
			continue
		}
		if hectare {
			v *= 10000
		}
		out = append(out, areaMatch{start: idx[0], value: v, hectare: hectare})
	}
	return out
}

func parseAreaValue(num string, hectare bool) (float64, bool) {
	if !hectare && thousandsRegex.MatchString(num) {
		num = strings.NewReplacer(".", "", ",", "").Replace(num)
	} else {
		num = strings.ReplaceAll(num, ",", ".")
		if i := strings.LastIndex(num, "."); i >= 0 {
			num = strings.ReplaceAll(num[:i], ".", "") + num[i:]
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractBuiltArea returns the first square-meter figure when the text
// mentions "mq", or 0.
func ExtractBuiltArea(text string) int {
	text = strings.ToLower(text)
	if !strings.Contains(text, builtKeyword) {
		return 0
	}
	for _, m := range findAreas(text) {
		if !m.hectare {
			return int(m.value)
		}
	}
	return 0
}

// ExtractLandArea returns the area next to the land keyword, converting
// hectares to m². The first figure after the keyword wins, otherwise the
// last one before it. Returns 0 when the keyword is absent.
func ExtractLandArea(text string) int {
	text = strings.ToLower(text)
	at := strings.Index(text, landKeyword)
	if at < 0 {
		return 0
	}
	matches := findAreas(text)
	for _, m := range matches {
		if m.start >= at {
			return int(m.value)
		}
	}
	for i := len(matches) - 1; i >= 0; i-- {
		if matches[i].start < at {
			return int(matches[i].value)
		}
	}
	return 0
}

// EstimateLandArea fills in a missing land area: built area times ratio
// when known, otherwise the configured floor.
func EstimateLandArea(land, built, ratio, fallback int) int {
	if land > 0 {
		return land
	}
	if built > 0 {
		return built * ratio
	}
	return fallback
}
