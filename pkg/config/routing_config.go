package config

import (
	"fmt"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/ciaranglansford/civic-quant/pkg/routing"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// routingYAML mirrors routing.Config with YAML tags, so a user-provided
// routing.yaml only needs to name the topics/thresholds it wants to
// override; everything else falls through to routing.DefaultConfig().
type routingYAML struct {
	TopicDestinations        map[schema.Topic][]string `yaml:"topic_destinations"`
	ImpactPriorityThresholds []impactThresholdYAML      `yaml:"impact_priority_thresholds"`
	EvidenceEnabled          *bool                      `yaml:"evidence_enabled"`
}

type impactThresholdYAML struct {
	MinScore float64                `yaml:"min_score"`
	Priority schema.PublishPriority `yaml:"priority"`
}

// LoadRoutingConfig reads a routing.yaml document (if present) and merges
// it over routing.DefaultConfig(): topics/thresholds the document omits
// keep their built-in value. A missing file is not an error — the
// built-in table is used as-is.
func LoadRoutingConfig(data []byte) (routing.Config, error) {
	base := routing.DefaultConfig()
	if len(data) == 0 {
		return base, nil
	}

	var doc routingYAML
	expanded := ExpandEnv(data)
	if err := yaml.Unmarshal(expanded, &doc); err != nil {
		return routing.Config{}, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	if len(doc.TopicDestinations) > 0 {
		if err := mergo.Merge(&base.TopicDestinations, doc.TopicDestinations, mergo.WithOverride); err != nil {
			return routing.Config{}, fmt.Errorf("merge topic_destinations: %w", err)
		}
	}
	if len(doc.ImpactPriorityThresholds) > 0 {
		thresholds := make([]routing.ImpactThreshold, 0, len(doc.ImpactPriorityThresholds))
		for _, t := range doc.ImpactPriorityThresholds {
			thresholds = append(thresholds, routing.ImpactThreshold{MinScore: t.MinScore, Priority: t.Priority})
		}
		base.ImpactPriorityThresholds = thresholds
	}
	if doc.EvidenceEnabled != nil {
		base.EvidenceEnabled = *doc.EvidenceEnabled
	}

	return base, nil
}
