package decompose

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TopicTable maps abstract policy topics to the concrete dimensions they are
// expanded into before retrieval. Immutable after construction.
type TopicTable struct {
	dims map[string][]string
}

// NewTopicTable builds a table from an abstract-topic -> dimensions map.
// Topic keys are matched case-insensitively.
func NewTopicTable(m map[string][]string) *TopicTable {
	dims := make(map[string][]string, len(m))
	for k, v := range m {
		dims[strings.ToLower(strings.TrimSpace(k))] = append([]string(nil), v...)
	}
	return &TopicTable{dims: dims}
}

// DefaultTopicTable covers the abstract topics that recur in parliamentary
// questions. Querying these literally retrieves almost nothing; their
// concrete facets do.
func DefaultTopicTable() *TopicTable {
	return NewTopicTable(map[string][]string{
		"Migrationspolitik": {
			"Abschiebung und Rückkehr",
			"Integration und Aufnahme",
			"Grenzkontrolle und Sicherheit",
			"Familiennachzug",
		},
		"Klimapolitik": {
			"CO2-Bepreisung und Emissionshandel",
			"Kohleausstieg und Energiewende",
			"Verkehrswende",
			"Internationale Klimaabkommen",
		},
		"Sozialpolitik": {
			"Grundsicherung und Arbeitslosengeld",
			"Rente und Altersvorsorge",
			"Mindestlohn",
			"Wohnen und Mieten",
		},
		"Wirtschaftspolitik": {
			"Steuern und Abgaben",
			"Mittelstand und Industrie",
			"Haushalt und Schulden",
			"Außenhandel",
		},
	})
}

type topicFile struct {
	Topics map[string][]string `yaml:"topics"`
}

// LoadTopicTable reads a topic dimension table from YAML:
//
//	topics:
//	  Migrationspolitik:
//	    - Abschiebung und Rückkehr
func LoadTopicTable(path string) (*TopicTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic table: %w", err)
	}
	var tf topicFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parse topic table: %w", err)
	}
	if len(tf.Topics) == 0 {
		return nil, fmt.Errorf("topic table %s defines no topics", path)
	}
	return NewTopicTable(tf.Topics), nil
}

// Dimensions returns the concrete dimensions for an abstract topic, or
// (nil, false) when the topic is already concrete.
func (t *TopicTable) Dimensions(topic string) ([]string, bool) {
	d, ok := t.dims[strings.ToLower(strings.TrimSpace(topic))]
	if !ok {
		return nil, false
	}
	return append([]string(nil), d...), true
}
