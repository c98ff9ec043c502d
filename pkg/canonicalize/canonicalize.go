// Package canonicalize applies a deterministic, idempotent post-validation
// pass over an extraction: alias/casing/dedup/sort normalization of
// entities, a pronoun/high-risk summary-safety rewrite, and fingerprint
// stabilization. Every change appends a stable rule identifier so the
// pipeline can audit exactly which transformations fired.
package canonicalize

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

var titleCaser = cases.Title(language.English)

var whitespaceRe = regexp.MustCompile(`\s+`)
var tickerCleanRe = regexp.MustCompile(`[^A-Z0-9.\-]`)
var pronounRe = regexp.MustCompile(`(?i)\b(it|they|he|she)\b`)

var countryAliases = map[string]string{
	"us":   "United States",
	"u.s.": "United States",
	"u.s":  "United States",
	"usa":  "United States",
	"uk":   "United Kingdom",
	"u.k.": "United Kingdom",
	"u.k":  "United Kingdom",
	"uae":  "United Arab Emirates",
	"eu":   "European Union",
}

var highRiskTerms = []string{
	"killing", "killed", "assassination", "death of", "strike", "attack",
	"attacked", "targeting", "casualties", "injured", "wounded", "dead",
	"invasion", "military escalation", "direct strike", "major incident",
	"launched", "missile", "missiles",
}

var attributionMarkers = []string{
	"according to", "said", "says", "reported", "reportedly", "claims",
	"claimed", "responded to reports",
}

// Result is the canonicalized extraction plus the ordered list of rule
// identifiers that fired while producing it.
type Result struct {
	Extraction schema.Extraction
	RulesFired []string
}

// Extraction canonicalizes a validated extraction. Running it twice on
// its own output yields an identical payload and no further rules fired.
func Extraction(in schema.Extraction) Result {
	out := in
	var rules []string

	canonicalCountries := canonicalCountries(in.Entities.Countries)
	if !stringSlicesEqual(canonicalCountries, in.Entities.Countries) {
		rules = append(rules, "country_alias_normalization")
	}
	out.Entities.Countries = canonicalCountries

	affected := canonicalCountries(in.AffectedCountriesFirstOrder)
	if !stringSlicesEqual(affected, in.AffectedCountriesFirstOrder) {
		rules = append(rules, "affected_country_alias_normalization")
	}
	out.AffectedCountriesFirstOrder = affected

	tickers := canonicalTickers(in.Entities.Tickers)
	if !stringSlicesEqual(tickers, in.Entities.Tickers) {
		rules = append(rules, "ticker_normalization")
	}
	out.Entities.Tickers = tickers

	orgs := canonicalTextList(in.Entities.Orgs)
	if !stringSlicesEqual(orgs, in.Entities.Orgs) {
		rules = append(rules, "org_text_normalization")
	}
	out.Entities.Orgs = orgs

	people := canonicalTextList(in.Entities.People)
	if !stringSlicesEqual(people, in.Entities.People) {
		rules = append(rules, "person_text_normalization")
	}
	out.Entities.People = people

	source := canonicalSource(in.SourceClaimed)
	if !stringPtrEqual(source, in.SourceClaimed) {
		rules = append(rules, "source_text_normalization")
	}
	out.SourceClaimed = source

	summary, summaryRules := rewriteSummarySafely(out)
	if summary != in.Summary1Sentence {
		rules = append(rules, summaryRules...)
	}
	out.Summary1Sentence = summary

	canonicalFingerprint := canonicalizeFingerprintCountryComponent(in.EventFingerprint, canonicalCountries)
	if canonicalFingerprint != in.EventFingerprint {
		rules = append(rules, "event_fingerprint_country_normalization")
	}
	out.EventFingerprint = canonicalFingerprint

	return Result{Extraction: out, RulesFired: rules}
}

func normalizeSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func canonicalCountry(value string) string {
	cleaned := normalizeSpaces(value)
	if cleaned == "" {
		return ""
	}
	key := strings.ToLower(cleaned)
	canonical, ok := countryAliases[key]
	if !ok {
		canonical = cleaned
	}
	if canonical == strings.ToLower(canonical) {
		return titleCaser.String(canonical)
	}
	return canonical
}

func canonicalCountries(values []string) []string {
	return dedupAndSortCaseInsensitive(values, canonicalCountry)
}

func canonicalTickers(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, raw := range values {
		cleaned := strings.ToUpper(normalizeSpaces(raw))
		cleaned = tickerCleanRe.ReplaceAllString(cleaned, "")
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
	}
	sort.Strings(out)
	return out
}

func canonicalTextList(values []string) []string {
	return dedupAndSortCaseInsensitive(values, normalizeSpaces)
}

func dedupAndSortCaseInsensitive(values []string, transform func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, raw := range values {
		canonical := transform(raw)
		if canonical == "" {
			continue
		}
		key := strings.ToLower(canonical)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, canonical)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

func canonicalSource(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := normalizeSpaces(*value)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func canonicalizeFingerprintCountryComponent(fingerprint string, countries []string) string {
	parts := strings.Split(fingerprint, "|")
	if len(parts) < 8 {
		return fingerprint
	}
	parts[2] = strings.Join(countries, ",")
	return strings.Join(parts, "|")
}

func summaryHasHighRiskLanguage(summary string) bool {
	normalized := strings.ToLower(normalizeSpaces(summary))
	for _, term := range highRiskTerms {
		if strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

func summaryHasAttribution(summary string) bool {
	normalized := strings.ToLower(normalizeSpaces(summary))
	for _, marker := range attributionMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// bestActor picks the actor to substitute for ambiguous pronouns and to
// attribute a rewritten claim to, in precedence order: source_claimed,
// first org, first person, first country.
func bestActor(ext schema.Extraction) string {
	if ext.SourceClaimed != nil && strings.TrimSpace(*ext.SourceClaimed) != "" {
		return normalizeSpaces(*ext.SourceClaimed)
	}
	for _, v := range ext.Entities.Orgs {
		if strings.TrimSpace(v) != "" {
			return normalizeSpaces(v)
		}
	}
	for _, v := range ext.Entities.People {
		if strings.TrimSpace(v) != "" {
			return normalizeSpaces(v)
		}
	}
	for _, v := range ext.Entities.Countries {
		if strings.TrimSpace(v) != "" {
			return normalizeSpaces(v)
		}
	}
	return ""
}

func rewriteSummarySafely(ext schema.Extraction) (string, []string) {
	summary := normalizeSpaces(ext.Summary1Sentence)
	var rules []string
	if summary == "" {
		return ext.Summary1Sentence, rules
	}

	actor := bestActor(ext)

	if pronounRe.MatchString(summary) && actor != "" {
		summary = replaceFirst(pronounRe, summary, actor)
		rules = append(rules, "summary_pronoun_disambiguated")
	}

	if summaryHasHighRiskLanguage(summary) && !summaryHasAttribution(summary) {
		claim := strings.TrimRight(summary, ".")
		if actor != "" {
			summary = actor + " said " + strings.ToLower(claim) + "."
		} else {
			summary = "Reportedly, " + strings.ToLower(claim) + "."
		}
		rules = append(rules, "summary_high_risk_attribution_rewrite")
	}

	return summary, rules
}

func replaceFirst(re *regexp.Regexp, s, replacement string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + replacement + s[loc[1]:]
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
