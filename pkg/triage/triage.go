// Package triage decides what should happen to an extraction once it has
// been canonicalized and (if applicable) merged against a candidate event:
// archive it as noise, let it update an existing event, promote it to a
// new notable event, or just monitor it. Every decision carries an ordered
// list of reason codes so downstream routing and audit logs can explain
// exactly why a message landed where it did.
package triage

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

var (
	reactionLexicon = []string{
		"condemn", "concern", "urge", "calls for", "unacceptable", "warns", "responds",
	}
	operationalLexicon = []string{
		"strike", "attacked", "launched", "killed", "injured", "casualties",
		"missile", "troops", "explosion",
	}
	localIncidentLexicon = []string{
		"police", "incident", "injured", "city", "county", "sheriff", "public safety",
	}
	attributionAuthorityMarkers = []string{
		"police", "ministry", "official", "military", "agency", "spokesperson", "according to",
	}
	commentaryMarkers = []string{
		"commentary", "analyst", "opinion", "urges", "condemns", "concerned",
	}
	conflictGeoMarkers = []string{
		"missile", "strike", "military", "airstrike", "drone", "cross-border",
		"invasion", "army", "navy", "tehran", "israel", "iran", "ukraine", "russia",
	}
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	localGeoRe   = regexp.MustCompile(`\b[A-Z][a-z]+,\s*[A-Z]{2}\b`)
)

func normalizeText(value string) string {
	if value == "" {
		return ""
	}
	return strings.ToLower(whitespaceRe.ReplaceAllString(strings.TrimSpace(value), " "))
}

// CandidateEventContext carries the last-known state of the event a new
// extraction might be related to, as seen by the triage engine.
type CandidateEventContext struct {
	ImpactBand  string
	Entities    map[string]bool
	SummaryTags map[string]bool
	SourceClass string
}

// Context is the triage-time view of an extraction's relationship to an
// existing event.
type Context struct {
	ExistingEventID       *int
	CandidateEvent        *CandidateEventContext
	SoftRelatedMatch      bool
	BurstLowDeltaPriorCnt int
}

// Decision is the output of the triage engine.
type Decision struct {
	TriageAction schema.TriageAction
	ReasonCodes  []string
}

// ImpactBand buckets an impact score into the four bands the decision
// table operates on.
func ImpactBand(score float64) string {
	switch {
	case score >= 85:
		return "critical"
	case score >= 70:
		return "high"
	case score >= 55:
		return "medium"
	default:
		return "low"
	}
}

// ConfidenceBand buckets a confidence score.
func ConfidenceBand(score float64) string {
	switch {
	case score >= 0.85:
		return "strong"
	case score >= 0.75:
		return "usable"
	default:
		return "weak"
	}
}

var bandRank = map[string]int{"low": 0, "medium": 1, "high": 2, "critical": 3}

func summaryTags(summary string) map[string]bool {
	normalized := normalizeText(summary)
	tags := make(map[string]bool)
	for _, token := range reactionLexicon {
		if strings.Contains(normalized, token) {
			tags["reaction"] = true
			break
		}
	}
	for _, token := range operationalLexicon {
		if strings.Contains(normalized, token) {
			tags["operational"] = true
			break
		}
	}
	for _, token := range localIncidentLexicon {
		if strings.Contains(normalized, token) {
			tags["local_incident"] = true
			break
		}
	}
	return tags
}

// ClassifySource buckets the claimed source and summary text into
// authority, commentary, or unknown.
func ClassifySource(sourceClaimed *string, summary string) string {
	source := ""
	if sourceClaimed != nil {
		source = normalizeText(*sourceClaimed)
	}
	summaryNorm := normalizeText(summary)

	for _, marker := range attributionAuthorityMarkers {
		if marker == "according to" {
			continue
		}
		if strings.Contains(source, marker) {
			return "authority"
		}
	}
	if strings.Contains(summaryNorm, "according to") {
		return "authority"
	}

	combined := strings.TrimSpace(source + " " + summaryNorm)
	for _, marker := range commentaryMarkers {
		if strings.Contains(combined, marker) {
			return "commentary"
		}
	}
	return "unknown"
}

// EntitySignature projects an extraction's entities into a flat,
// type-prefixed set usable for overlap and material-newness comparisons.
func EntitySignature(ext schema.Extraction) map[string]bool {
	out := make(map[string]bool)
	for _, v := range ext.Entities.Countries {
		if v != "" {
			out["country:"+normalizeText(v)] = true
		}
	}
	for _, v := range ext.Entities.Orgs {
		if v != "" {
			out["org:"+normalizeText(v)] = true
		}
	}
	for _, v := range ext.Entities.People {
		if v != "" {
			out["person:"+normalizeText(v)] = true
		}
	}
	return out
}

// IsLocalDomesticIncident reports whether an extraction reads like a
// local/domestic public-safety story rather than a conflict story, so it
// never gets promoted or treated as a material update no matter how it
// scores on impact or confidence.
func IsLocalDomesticIncident(ext schema.Extraction) bool {
	summary := ext.Summary1Sentence
	source := ""
	if ext.SourceClaimed != nil {
		source = *ext.SourceClaimed
	}
	combined := summary + " " + strings.Join(ext.Keywords, " ") + " " + source
	normalized := normalizeText(combined)

	hasLocalAuthority := false
	for _, token := range []string{"police", "sheriff", "public safety"} {
		if strings.Contains(normalized, token) {
			hasLocalAuthority = true
			break
		}
	}

	hasIncidentLanguage := false
	for _, token := range []string{"incident", "injured", "wounded", "casualt"} {
		if strings.Contains(normalized, token) {
			hasIncidentLanguage = true
			break
		}
	}

	hasLocalGeo := localGeoRe.MatchString(summary)
	if !hasLocalGeo {
		for _, token := range []string{" city ", " county ", " state "} {
			if strings.Contains(normalized, token) {
				hasLocalGeo = true
				break
			}
		}
	}

	hasConflictMarker := false
	for _, token := range conflictGeoMarkers {
		if strings.Contains(normalized, token) {
			hasConflictMarker = true
			break
		}
	}

	return hasLocalAuthority && hasIncidentLanguage && (hasLocalGeo || strings.Contains(normalized, "police")) && !hasConflictMarker
}

func materiallyNew(ext schema.Extraction, candidate *CandidateEventContext) bool {
	if candidate == nil {
		return true
	}

	current := EntitySignature(ext)
	for key := range current {
		if !candidate.Entities[key] {
			return true
		}
	}

	currentBand := ImpactBand(ext.ImpactScore)
	if candidate.ImpactBand != "" && bandRank[currentBand] > bandRank[candidate.ImpactBand] {
		return true
	}

	currentTags := summaryTags(ext.Summary1Sentence)
	if currentTags["operational"] && !candidate.SummaryTags["operational"] && candidate.SummaryTags["reaction"] {
		return true
	}

	currentSourceClass := ClassifySource(ext.SourceClaimed, ext.Summary1Sentence)
	if candidate.SourceClass == "commentary" && currentSourceClass == "authority" {
		return true
	}

	return false
}

// Decide computes a triage decision for an extraction given its
// relationship to an existing or candidate event. It mirrors the spec's
// eight-step decision table: compute novelty state, apply the soft-related
// downgrade, then archive/promote/update/monitor, then the burst cap, then
// the local-incident gate.
func Decide(ext schema.Extraction, ctx Context) Decision {
	var reasons []string

	impact := ImpactBand(ext.ImpactScore)
	conf := ConfidenceBand(ext.Confidence)
	reasons = append(reasons, "triage:score_band:"+impact, "triage:confidence_band:"+conf)

	localIncident := IsLocalDomesticIncident(ext)
	if localIncident {
		reasons = append(reasons, "triage:local_incident_downgrade")
	}

	novelty := "new_event"
	if ctx.ExistingEventID != nil {
		novelty = "related_update"
	}
	matNew := materiallyNew(ext, ctx.CandidateEvent)

	if ctx.ExistingEventID != nil && !matNew {
		novelty = "repeat_low_delta"
		reasons = append(reasons, "triage:repeat_downgrade")
	}

	if ctx.SoftRelatedMatch {
		reasons = append(reasons, "triage:soft_related_match")
	}

	if ctx.ExistingEventID == nil && ctx.SoftRelatedMatch && !matNew {
		reasons = append(reasons, "triage:soft_related_downgrade")
		novelty = "repeat_low_delta"
	}

	var action schema.TriageAction
	switch {
	case conf == "weak" && impact == "low":
		reasons = append(reasons, "triage:low_signal_archive")
		action = schema.TriageArchive
	case novelty == "new_event" && (impact == "high" || impact == "critical") && (conf == "usable" || conf == "strong"):
		reasons = append(reasons, "triage:new_event_promote")
		action = schema.TriagePromote
	case novelty == "related_update" && matNew:
		reasons = append(reasons, "triage:related_material_update")
		action = schema.TriageUpdate
	default:
		action = schema.TriageMonitor
	}

	if novelty == "repeat_low_delta" {
		switch {
		case ctx.BurstLowDeltaPriorCnt >= 2:
			reasons = append(reasons, "triage:burst_cap_monitor")
			action = schema.TriageMonitor
		case ctx.BurstLowDeltaPriorCnt >= 1:
			reasons = append(reasons, "triage:burst_cap_update")
			action = schema.TriageUpdate
		}
	}

	if localIncident && (action == schema.TriagePromote || action == schema.TriageUpdate) {
		action = schema.TriageMonitor
	}

	return Decision{TriageAction: action, ReasonCodes: reasons}
}

// EntitySignatureKeys is a deterministic, sorted view of an entity
// signature, useful for building fixtures and assertions in tests.
func EntitySignatureKeys(sig map[string]bool) []string {
	out := make([]string, 0, len(sig))
	for k := range sig {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
