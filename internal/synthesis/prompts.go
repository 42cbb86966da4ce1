package synthesis

import (
	"fmt"
	"strings"

	"github.com/openparl/plenumqa/internal/qa"
)

func buildExtractionPrompt(sq qa.SubQuestion, chunks []qa.Chunk) string {
	var b strings.Builder
	b.WriteString("Analysiere die folgenden Redeauszüge zur Teilfrage und extrahiere strukturierte Daten.\n\n")
	b.WriteString("Teilfrage: ")
	b.WriteString(sq.Text)
	b.WriteString("\n\nRedeauszüge:\n")
	for i, ch := range chunks {
		fmt.Fprintf(&b, "[%d] %s (%s), %s:\n%s\n\n", i+1,
			ch.Metadata.Speaker, ch.Metadata.Party, ch.Metadata.Date, ch.Text)
	}
	b.WriteString(`Extrahiere pro Partei:
1. Positionspaare entlang gegensätzlicher Achsen (z.B. moderat vs. hart). Prüfe ausdrücklich, ob BEIDE Seiten einer bekannten Achse im Material vorkommen, und gib beide an.
2. Konkrete Maßnahmen: Zahlen, Daten, benannte Instrumente.
3. Wörtliche Schlüsselformulierungen, unverändert zitiert.

Antworte ausschließlich mit JSON:
{
  "positions": [{"party": "...", "axis": "...", "side_a": "...", "side_b": "..."}],
  "measures": ["..."],
  "key_phrases": ["..."]
}`)
	return b.String()
}

func buildSynthesisPrompt(question string, records []qa.ExtractionRecord, sources []qa.Citation) string {
	var b strings.Builder
	b.WriteString("Beantworte die folgende Frage auf Basis der extrahierten Analysen.\n\n")
	b.WriteString("Frage: ")
	b.WriteString(question)
	b.WriteString("\n\nAnalysen je Teilfrage:\n\n")
	for i, rec := range records {
		fmt.Fprintf(&b, "--- Teilfrage %d: %s ---\n", i+1, rec.SubQuestion.Text)
		switch {
		case rec.Failed:
			fmt.Fprintf(&b, "[Analyse fehlgeschlagen: %s]\n\n", rec.FailReason)
		case rec.Raw != "":
			b.WriteString(rec.Raw)
			b.WriteString("\n\n")
		default:
			for _, pos := range rec.Positions {
				fmt.Fprintf(&b, "Position %s (%s): einerseits %s, andererseits %s\n",
					pos.Party, pos.Axis, pos.SideA, pos.SideB)
			}
			if len(rec.Measures) > 0 {
				fmt.Fprintf(&b, "Maßnahmen: %s\n", strings.Join(rec.Measures, "; "))
			}
			if len(rec.KeyPhrases) > 0 {
				fmt.Fprintf(&b, "Schlüsselformulierungen: „%s\"\n", strings.Join(rec.KeyPhrases, "\", „"))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("Verfügbare Quellen:\n")
	for _, s := range sources {
		b.WriteString("- ")
		b.WriteString(s.String())
		b.WriteString("\n")
	}
	b.WriteString(`
Anforderungen an die Antwort:
1. Verwende jede genannte Partei und jede Maßnahme mindestens einmal.
2. Übernimm Schlüsselformulierungen wörtlich, ohne Paraphrase.
3. Stelle bei jeder gegensätzlichen Achse beide Seiten dar, auch wenn eine Seite im Material schwächer vertreten ist.
4. Schließe mit einem Abschnitt "Quellen:", der jede verwendete Quelle als "- Sprecher (Partei), JJJJ-MM-TT" auflistet.`)
	return b.String()
}
