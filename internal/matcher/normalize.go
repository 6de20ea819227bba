package matcher

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	punctuationRe = regexp.MustCompile(`[^\w\s@]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	teamDelimRe   = regexp.MustCompile(`\s+(vs\.?|@|at)\s+`)
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthDateRe   = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})\b`)
	thresholdRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k|m|b|%|°|deg)?`)
)

// normalizeTitle lowercases, strips punctuation (preserving the team
// delimiter tokens vs/@/at), collapses whitespace, and expands aliases.
func normalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = punctuationRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	words := strings.Split(s, " ")
	for i, w := range words {
		if expanded, ok := aliasTable[w]; ok {
			words[i] = expanded
		}
	}
	return whitespaceRe.ReplaceAllString(strings.Join(words, " "), " ")
}

// features holds every signal the Matcher extracts from one market's
// normalized title, used to derive the event key and the quality score.
type features struct {
	teamA, teamB string
	hasTeams     bool
	date         string // YYYY-MM-DD, empty if undetermined
	threshold    float64
	hasThreshold bool
	metric       string
	direction    string // canonical: above/below/wins/loses, empty if none found
}

// extractFeatures runs every extraction rule over one title. Teams, metric,
// and direction come from the normalized form; dates and thresholds are read
// from the lowercased raw title because normalization strips the separators
// ("-", "/", ".", "%", "°") those patterns depend on.
func extractFeatures(normalized, raw string) features {
	lower := strings.ToLower(raw)

	var f features
	f.teamA, f.teamB, f.hasTeams = extractTeams(normalized)
	f.date = extractDate(lower)
	f.threshold, f.hasThreshold = extractThreshold(stripDates(lower))
	f.metric = extractMetric(normalized)
	f.direction = extractDirection(normalized)
	return f
}

// stripDates removes every recognized date form so extractThreshold never
// mistakes a date component for a numeric threshold.
func stripDates(s string) string {
	s = isoDateRe.ReplaceAllString(s, " ")
	s = monthDateRe.ReplaceAllString(s, " ")
	s = slashDateRe.ReplaceAllString(s, " ")
	return s
}

// entitySubject strips the direction phrase, the threshold number/unit,
// and any date tokens from a normalized title, leaving the subject the
// threshold is about (e.g. "nyc temp"). Two markets that differ only by
// direction ("above 70" vs "below 70") must reduce to the same subject so
// the opposing-direction grouping rule in deriveEventKey can apply.
func entitySubject(normalized string, f features) string {
	s := normalized
	if f.direction != "" {
		for _, entry := range directionAlias {
			if entry.canonical == f.direction {
				s = strings.Replace(s, entry.phrase, " ", 1)
			}
		}
	}
	s = thresholdRe.ReplaceAllString(s, " ")
	s = isoDateRe.ReplaceAllString(s, " ")
	s = monthDateRe.ReplaceAllString(s, " ")
	s = slashDateRe.ReplaceAllString(s, " ")
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// extractTeams splits on the vs/@/at delimiter and sorts the two sides so
// "a vs b" and "b vs a" produce the same pair.
func extractTeams(normalized string) (a, b string, ok bool) {
	loc := teamDelimRe.FindStringIndex(normalized)
	if loc == nil {
		return "", "", false
	}
	left := strings.TrimSpace(normalized[:loc[0]])
	right := strings.TrimSpace(normalized[loc[1]:])
	if left == "" || right == "" {
		return "", "", false
	}

	pair := []string{left, right}
	sort.Strings(pair)
	return pair[0], pair[1], true
}

// extractDate normalizes ISO, MM/DD, and "Month DD" forms to YYYY-MM-DD.
// Where the year is absent, it is left as "0000" and callers relying on a
// concrete year should instead consult the market's startTime.
func extractDate(normalized string) string {
	if m := isoDateRe.FindStringSubmatch(normalized); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	if m := monthDateRe.FindStringSubmatch(normalized); m != nil {
		month := monthNumber(m[1])
		day, _ := strconv.Atoi(m[2])
		return padDate("0000", month, day)
	}
	if m := slashDateRe.FindStringSubmatch(normalized); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year := "0000"
		if m[3] != "" {
			year = normalizeYear(m[3])
		}
		return padDate(year, month, day)
	}
	return ""
}

func monthNumber(name string) int {
	months := []string{"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december"}
	for i, m := range months {
		if m == name {
			return i + 1
		}
	}
	return 0
}

func normalizeYear(y string) string {
	if len(y) == 2 {
		return "20" + y
	}
	return y
}

func padDate(year string, month, day int) string {
	return year + "-" + pad2(month) + "-" + pad2(day)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// extractThreshold finds the first numeric value with an optional K/M/B/%/°
// unit suffix and normalizes it to a plain magnitude (K/M/B expanded,
// %/° left as-is).
func extractThreshold(normalized string) (float64, bool) {
	m := thresholdRe.FindStringSubmatch(normalized)
	if m == nil || m[1] == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "k":
		value *= 1_000
	case "m":
		value *= 1_000_000
	case "b":
		value *= 1_000_000_000
	}
	return value, true
}

// extractMetric returns the category of the first recognized metric
// keyword found in the title, checked in priority order, or "" if none
// match.
func extractMetric(normalized string) string {
	for _, entry := range metricKeywords {
		if strings.Contains(normalized, entry.keyword) {
			return entry.category
		}
	}
	return ""
}

// extractDirection returns the canonical direction word for the first
// recognized direction phrase found in the title, checked in priority
// order, or "" if none match.
func extractDirection(normalized string) string {
	for _, entry := range directionAlias {
		if strings.Contains(normalized, entry.phrase) {
			return entry.canonical
		}
	}
	return ""
}
