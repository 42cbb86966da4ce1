package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "quoted program name",
			text: `Wie wurde das Programm „Starthilfe Plus" bewertet?`,
			want: []string{"Starthilfe Plus"},
		},
		{
			name: "instrument with roman numeral",
			text: "Welche Änderungen brachte das Asylpaket II?",
			want: []string{"Asylpaket II"},
		},
		{
			name: "safe noun pattern",
			text: "Debatte über sichere Herkunftsstaaten im Jahr 2015",
			want: []string{"sichere Herkunftsstaaten"},
		},
		{
			name: "country suffix and list",
			text: "Abschiebungen nach Afghanistan und Tadschikistan",
			want: []string{"Afghanistan", "Tadschikistan"},
		},
		{
			name: "acronym but not roman numeral",
			text: "Die Rolle des BAMF beim Asylpaket II",
			want: []string{"Asylpaket II", "BAMF"},
		},
		{
			name: "nothing to extract",
			text: "Was sagte die Partei dazu im Jahr 2019?",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEntities(tt.text))
		})
	}
}

func TestExtractEntitiesDeduplicates(t *testing.T) {
	got := ExtractEntities("BAMF prüft, das BAMF entscheidet")
	assert.Equal(t, []string{"BAMF"}, got)
}
