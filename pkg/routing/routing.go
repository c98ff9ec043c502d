// Package routing decides where a canonical extraction goes once triage
// has classified it: which destination tables it's stored to, how loudly
// it gets published, whether it needs human evidence before publication,
// and what should happen to its event linkage.
package routing

import (
	"sort"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// Config is the routing table: topic destinations, the impact-to-priority
// threshold ladder, and whether evidence-gating is enabled at all.
type Config struct {
	TopicDestinations        map[schema.Topic][]string
	ImpactPriorityThresholds []ImpactThreshold
	EvidenceEnabled          bool
}

// ImpactThreshold maps a minimum impact score to a publish priority. The
// list is walked in order, so it must be sorted highest threshold first.
type ImpactThreshold struct {
	MinScore float64
	Priority schema.PublishPriority
}

// DefaultConfig mirrors the built-in routing table: one destination set
// per topic, a four-rung priority ladder, and evidence-gating off.
func DefaultConfig() Config {
	return Config{
		TopicDestinations: map[schema.Topic][]string{
			schema.TopicMacroEcon:        {"macro_events"},
			schema.TopicCentralBanks:     {"macro_events"},
			schema.TopicEquities:         {"stocks_events"},
			schema.TopicCredit:           {"credit_events"},
			schema.TopicRates:            {"macro_events"},
			schema.TopicFX:               {"macro_events"},
			schema.TopicCommodities:      {"macro_events"},
			schema.TopicCrypto:           {"crypto_events"},
			schema.TopicWarSecurity:      {"war_security_events"},
			schema.TopicGeopolitics:      {"war_security_events"},
			schema.TopicCompanySpecific:  {"stocks_events"},
			schema.TopicOther:            {"other_events"},
		},
		ImpactPriorityThresholds: []ImpactThreshold{
			{MinScore: 80, Priority: schema.PublishPriorityHigh},
			{MinScore: 60, Priority: schema.PublishPriorityMedium},
			{MinScore: 30, Priority: schema.PublishPriorityLow},
			{MinScore: 0, Priority: schema.PublishPriorityNone},
		},
		EvidenceEnabled: false,
	}
}

func priorityFromImpact(score float64, cfg Config) schema.PublishPriority {
	for _, t := range cfg.ImpactPriorityThresholds {
		if score >= t.MinScore {
			return t.Priority
		}
	}
	return schema.PublishPriorityNone
}

var priorityRank = map[schema.PublishPriority]int{
	schema.PublishPriorityNone:   0,
	schema.PublishPriorityLow:    1,
	schema.PublishPriorityMedium: 2,
	schema.PublishPriorityHigh:   3,
}

func capPriority(p schema.PublishPriority, max schema.PublishPriority) schema.PublishPriority {
	if priorityRank[p] > priorityRank[max] {
		return max
	}
	return p
}

// Input bundles the extraction and the triage outcome that routing acts
// on. ExistingEventID tells the event_action branch whether an update
// triage action actually found an event to update.
type Input struct {
	Extraction      schema.Extraction
	TriageAction    schema.TriageAction
	TriageRules     []string
	ExistingEventID *int
}

// Route computes a RoutingDecision from a canonical extraction and its
// triage outcome, applying the triage-based priority cap and the
// local-incident-downgrade overrides on top of the base impact/topic
// routing table.
func Route(in Input, cfg Config) schema.RoutingDecision {
	ext := in.Extraction
	var rulesFired []string

	storeTo, ok := cfg.TopicDestinations[ext.Topic]
	if !ok {
		storeTo = []string{"other_events"}
	}
	rulesFired = append(rulesFired, "topic_to_dest:"+string(ext.Topic))

	priority := priorityFromImpact(ext.ImpactScore, cfg)
	rulesFired = append(rulesFired, "impact_to_priority:"+string(priority))

	localIncidentDowngrade := contains(in.TriageRules, "triage:local_incident_downgrade")

	switch in.TriageAction {
	case schema.TriageUpdate:
		priority = capPriority(priority, schema.PublishPriorityMedium)
		rulesFired = append(rulesFired, "triage_cap:update")
	case schema.TriageMonitor:
		priority = capPriority(priority, schema.PublishPriorityLow)
		rulesFired = append(rulesFired, "triage_cap:monitor")
	case schema.TriageArchive:
		priority = schema.PublishPriorityNone
		rulesFired = append(rulesFired, "triage_cap:archive")
	}
	if localIncidentDowngrade {
		priority = capPriority(priority, schema.PublishPriorityLow)
		rulesFired = append(rulesFired, "triage_cap:local_incident_downgrade")
	}

	requiresEvidence := false
	if cfg.EvidenceEnabled && (ext.IsBreaking ||
		ext.ImpactScore >= 60 ||
		(isEvidenceTopic(ext.Topic) && ext.Confidence >= 0.6)) {
		requiresEvidence = true
		rulesFired = append(rulesFired, "requires_evidence:rule_default")
	}
	if localIncidentDowngrade && !requiresEvidence {
		requiresEvidence = true
		rulesFired = append(rulesFired, "requires_evidence:local_incident_downgrade")
	}

	var eventAction schema.EventAction
	switch {
	case ext.Summary1Sentence == "":
		eventAction = schema.EventActionIgnore
	default:
		eventAction = schema.EventActionCreate
	}
	rulesFired = append(rulesFired, "event_action:"+string(eventAction))

	if in.TriageAction == schema.TriageArchive {
		eventAction = schema.EventActionIgnore
		rulesFired = append(rulesFired, "event_action_override:archive_ignore")
	} else if in.TriageAction == schema.TriageUpdate && in.ExistingEventID != nil {
		eventAction = schema.EventActionUpdate
		rulesFired = append(rulesFired, "event_action_override:update_existing")
	}

	var flags []string
	if requiresEvidence {
		flags = append(flags, "unconfirmed")
	}
	if ext.ImpactScore >= 60 {
		flags = append(flags, "high_impact")
	}
	if ext.IsBreaking {
		flags = append(flags, "breaking")
	}
	if localIncidentDowngrade {
		flags = append(flags, "local_incident")
	}

	var triageActionPtr *schema.TriageAction
	if in.TriageAction != "" {
		action := in.TriageAction
		triageActionPtr = &action
	}

	return schema.RoutingDecision{
		StoreTo:          append([]string(nil), storeTo...),
		PublishPriority:  priority,
		RequiresEvidence: requiresEvidence,
		EventAction:      eventAction,
		TriageAction:     triageActionPtr,
		TriageRules:      append([]string(nil), in.TriageRules...),
		Flags:            flags,
		RulesFired:       rulesFired,
	}
}

func isEvidenceTopic(topic schema.Topic) bool {
	switch topic {
	case schema.TopicMacroEcon, schema.TopicWarSecurity, schema.TopicCredit:
		return true
	default:
		return false
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// SortedTopics returns the topics a Config routes, sorted, useful for
// deterministic test fixtures and admin introspection.
func SortedTopics(cfg Config) []string {
	out := make([]string, 0, len(cfg.TopicDestinations))
	for t := range cfg.TopicDestinations {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
