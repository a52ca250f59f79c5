package ingest

import (
	"strconv"
	"strings"
	"time"
)

// DefaultTruthyTokens is the set of values accepted as "true" for consent
// columns. Exports mix languages and widget labels, so this covers the
// yes/true/member/checked/joined variants seen in real files. Configuration
// data, not fraud logic; override via SetTruthyTokens if a deployment needs
// more.
var DefaultTruthyTokens = []string{
	"yes", "y", "true", "1", "si", "sí", "oui",
	"member", "miembro", "membre",
	"checked", "joined", "accepted", "aceptado", "agree", "ok",
}

var truthyTokens = buildTokenSet(DefaultTruthyTokens)

// SetTruthyTokens replaces the accepted truthy-token set.
func SetTruthyTokens(tokens []string) {
	truthyTokens = buildTokenSet(tokens)
}

func buildTokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[foldString(token)] = struct{}{}
	}
	return set
}

var diacriticFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o", "õ", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c",
)

// foldString lower-cases and strips the diacritics that show up in the
// Spanish/French/Portuguese export variants.
func foldString(s string) string {
	return diacriticFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// parseBool is deliberately strict: anything outside the enumerated truthy
// set is false.
func parseBool(raw string) bool {
	if raw == "" {
		return false
	}
	_, ok := truthyTokens[foldString(raw)]
	return ok
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006/1/2",
}

// parseDateOr parses a date string, falling back to the given instant when
// the value is empty or unparseable. Slash dates whose first component
// exceeds 12 are treated as day-first and reordered before parsing.
func parseDateOr(raw string, fallback time.Time) time.Time {
	if t := parseDate(raw); t != nil {
		return *t
	}
	return fallback
}

// parseOptionalDate distinguishes "no completion date" (empty string, nil
// result) from a malformed one, which falls back to the ingestion instant
// so the row still makes progress.
func parseOptionalDate(raw string, fallback time.Time) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if t := parseDate(raw); t != nil {
		return t
	}
	return &fallback
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.Contains(raw, "/") {
		raw = reorderDayFirst(raw)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// reorderDayFirst rewrites "25/03/2024 ..." as "03/25/2024 ..." when the
// first slash component cannot be a month. Month-first slash dates pass
// through untouched.
func reorderDayFirst(raw string) string {
	datePart := raw
	rest := ""
	if idx := strings.IndexByte(raw, ' '); idx >= 0 {
		datePart, rest = raw[:idx], raw[idx:]
	}

	parts := strings.Split(datePart, "/")
	if len(parts) != 3 {
		return raw
	}

	first, err := strconv.Atoi(parts[0])
	if err != nil || first <= 12 {
		return raw
	}

	return parts[1] + "/" + parts[0] + "/" + parts[2] + rest
}

// parseInt strips everything except digits, dot and minus before parsing.
// Unparseable or empty values yield 0.
func parseInt(raw string) int {
	var cleaned strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			cleaned.WriteRune(r)
		}
	}
	if cleaned.Len() == 0 {
		return 0
	}

	if value, err := strconv.Atoi(cleaned.String()); err == nil {
		return value
	}
	if value, err := strconv.ParseFloat(cleaned.String(), 64); err == nil {
		return int(value)
	}
	return 0
}

var passTokens = buildTokenSet([]string{"pass", "passed", "approved", "aprobado", "aprobada", "aprovado"})
var failTokens = buildTokenSet([]string{"fail", "failed", "reprobado", "reprobada", "rechazado", "suspendido"})

// parseGrade maps raw grade values onto Pass/Fail/Pending. Anything not in
// the synonym sets, including empty, is Pending.
func parseGrade(raw string) Grade {
	folded := foldString(raw)
	if _, ok := passTokens[folded]; ok {
		return GradePass
	}
	if _, ok := failTokens[folded]; ok {
		return GradeFail
	}
	return GradePending
}
