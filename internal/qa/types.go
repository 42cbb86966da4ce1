package qa

import (
	"fmt"
	"sort"
	"strings"
)

// QuestionIntent classifies how much orchestration a question needs.
type QuestionIntent string

const (
	IntentSimple  QuestionIntent = "simple"
	IntentComplex QuestionIntent = "complex"
)

// QuestionType selects the decomposition template.
type QuestionType string

const (
	TypeChangeAnalysis QuestionType = "change_analysis"
	TypeSummary        QuestionType = "summary"
	TypeComparison     QuestionType = "comparison"
	TypeTrendAnalysis  QuestionType = "trend_analysis"
)

// RetrievalStrategy tells the coordinator how a sub-question's time filter
// should be built.
type RetrievalStrategy string

const (
	StrategySingleYear RetrievalStrategy = "single_year"
	StrategyMultiYear  RetrievalStrategy = "multi_year"
)

// TimeRange holds the temporal scope extracted from a question. SpecificYears
// is an explicit, possibly non-contiguous set of years and always takes
// priority over the start/end span: deriving a range from two discrete years
// would incorrectly pull in the intervening ones.
type TimeRange struct {
	StartYear     int   `json:"start_year,omitempty"`
	EndYear       int   `json:"end_year,omitempty"`
	SpecificYears []int `json:"specific_years,omitempty"`
}

// IsZero reports whether no temporal scope was extracted at all.
func (t TimeRange) IsZero() bool {
	return t.StartYear == 0 && t.EndYear == 0 && len(t.SpecificYears) == 0
}

// Years returns the effective ordered year set: the specific set if present,
// otherwise the full start..end span.
func (t TimeRange) Years() []int {
	if len(t.SpecificYears) > 0 {
		out := append([]int(nil), t.SpecificYears...)
		sort.Ints(out)
		return out
	}
	if t.StartYear == 0 {
		return nil
	}
	end := t.EndYear
	if end < t.StartYear {
		end = t.StartYear
	}
	out := make([]int, 0, end-t.StartYear+1)
	for y := t.StartYear; y <= end; y++ {
		out = append(out, y)
	}
	return out
}

// Span returns the inclusive width of the time range in years.
func (t TimeRange) Span() int {
	ys := t.Years()
	if len(ys) == 0 {
		return 0
	}
	return ys[len(ys)-1] - ys[0] + 1
}

// Parameters are the structured retrieval parameters extracted from a raw
// question by the parameter-extraction service.
type Parameters struct {
	TimeRange TimeRange    `json:"time_range"`
	Parties   []string     `json:"parties,omitempty"`
	Topics    []string     `json:"topics,omitempty"`
	Speakers  []string     `json:"speakers,omitempty"`
	Type      QuestionType `json:"question_type,omitempty"`
}

// IsTrivial reports whether the parameters carry nothing a decomposition
// template could act on.
func (p Parameters) IsTrivial() bool {
	return p.TimeRange.IsZero() && len(p.Parties) == 0 && len(p.Topics) == 0 && len(p.Speakers) == 0
}

// SubQuestion is one atomic retrieval unit produced by decomposition, bound to
// at most one year, party and topic dimension.
type SubQuestion struct {
	Text              string            `json:"text"`
	TargetYear        int               `json:"target_year,omitempty"`
	TargetParty       string            `json:"target_party,omitempty"`
	TopicDimension    string            `json:"topic_dimension,omitempty"`
	RetrievalStrategy RetrievalStrategy `json:"retrieval_strategy"`
}

// ChunkMetadata is the provenance record attached to every retrieved passage.
type ChunkMetadata struct {
	Speaker    string `json:"speaker"`
	Party      string `json:"party"`
	Year       int    `json:"year"`
	Date       string `json:"date"`
	Session    string `json:"session,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
}

// Chunk is a retrieved passage with similarity score and provenance.
// Chunks are immutable once fetched.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// RetrievalResult holds the merged, deduplicated chunks for one sub-question.
// Invariant: the year distribution values sum to len(Chunks).
type RetrievalResult struct {
	SubQuestion     SubQuestion `json:"sub_question"`
	Chunks          []Chunk     `json:"chunks"`
	YearDist        map[int]int `json:"year_distribution"`
	RetrievalMethod string      `json:"retrieval_method"`
}

// Citation is one parsed entry of the answer's trailing source list.
// Date is normalized to YYYY-MM-DD.
type Citation struct {
	Speaker string `json:"speaker"`
	Party   string `json:"party"`
	Date    string `json:"date"`
}

func (c Citation) String() string {
	return fmt.Sprintf("%s (%s), %s", c.Speaker, c.Party, c.Date)
}

// MatchedCitation ties a citation back to the retrieved chunks that support
// it. A citation with zero matches is flagged, never dropped.
type MatchedCitation struct {
	Citation Citation `json:"citation"`
	Chunks   []Chunk  `json:"matched_chunks,omitempty"`
	Matched  bool     `json:"matched"`
}

// ExtractionRecord is the stage-1 structured extraction for one sub-question.
// When the generated output cannot be parsed as structured data, Raw carries
// the verbatim text instead; when extraction fails entirely, Failed is set and
// the record still represents the sub-question going into stage 2.
type ExtractionRecord struct {
	SubQuestion SubQuestion    `json:"sub_question"`
	Positions   []PositionPair `json:"positions,omitempty"`
	Measures    []string       `json:"measures,omitempty"`
	KeyPhrases  []string       `json:"key_phrases,omitempty"`
	Raw         string         `json:"raw,omitempty"`
	Incomplete  bool           `json:"incomplete,omitempty"`
	Failed      bool           `json:"failed,omitempty"`
	FailReason  string         `json:"fail_reason,omitempty"`
}

// PositionPair captures the two sides of an oppositional axis within a party
// record, e.g. a moderate versus a hard-line stance.
type PositionPair struct {
	Party string `json:"party"`
	Axis  string `json:"axis,omitempty"`
	SideA string `json:"side_a"`
	SideB string `json:"side_b"`
}

// NormalizeDate zero-pads a loosely formatted date ("2015-5-3") into
// YYYY-MM-DD. Inputs that do not look like a dash-separated date are returned
// unchanged.
func NormalizeDate(s string) string {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return strings.TrimSpace(s)
	}
	y, m, d := parts[0], parts[1], parts[2]
	if len(y) != 4 {
		return strings.TrimSpace(s)
	}
	if len(m) == 1 {
		m = "0" + m
	}
	if len(d) == 1 {
		d = "0" + d
	}
	return y + "-" + m + "-" + d
}

// ContiguousYears reports whether the sorted year set has no gaps. A single
// year counts as contiguous.
func ContiguousYears(years []int) bool {
	if len(years) == 0 {
		return false
	}
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] != 1 {
			return false
		}
	}
	return true
}
