// Package decompose turns extracted question parameters into an ordered list
// of atomic sub-questions. Four templates exist, selected by question type;
// the time granularity adapts to the width of the requested span.
package decompose

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/parties"
	"github.com/openparl/plenumqa/internal/qa"
)

// Config carries the decomposition tunables.
type Config struct {
	MaxSamplePoints int
	MaxTrendBuckets int
}

// Decomposer generates sub-questions from parameters. Tunables may be
// swapped at runtime via Reconfigure.
type Decomposer struct {
	mu     sync.RWMutex
	cfg    Config
	topics *TopicTable
	table  *parties.Table
	log    *zap.Logger
}

func withDefaults(cfg Config) Config {
	if cfg.MaxSamplePoints <= 1 {
		cfg.MaxSamplePoints = 5
	}
	if cfg.MaxTrendBuckets <= 0 {
		cfg.MaxTrendBuckets = 4
	}
	return cfg
}

// New creates a decomposer. The party table and topic table are required;
// pass the defaults when no configuration file overrides them.
func New(cfg Config, topics *TopicTable, table *parties.Table, logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{cfg: withDefaults(cfg), topics: topics, table: table, log: logger}
}

// Reconfigure swaps the tunables for subsequent decompositions.
func (d *Decomposer) Reconfigure(cfg Config) {
	cfg = withDefaults(cfg)
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *Decomposer) config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Decompose returns the ordered sub-question list for the question type.
// Never returns an empty list for non-trivial parameters.
func (d *Decomposer) Decompose(question string, p qa.Parameters) ([]qa.SubQuestion, error) {
	if p.IsTrivial() {
		return nil, fmt.Errorf("parameters carry nothing to decompose")
	}

	var subs []qa.SubQuestion
	switch p.Type {
	case qa.TypeChangeAnalysis:
		subs = d.changeAnalysis(p)
	case qa.TypeComparison:
		subs = d.comparison(p)
	case qa.TypeTrendAnalysis:
		subs = d.trendAnalysis(p)
	default:
		subs = d.summary(p)
	}

	if len(subs) == 0 {
		// Whatever the template thought, non-trivial parameters must yield
		// at least the question itself as a single retrieval unit.
		subs = []qa.SubQuestion{{Text: question, RetrievalStrategy: qa.StrategyMultiYear}}
	}

	metrics.SubQuestionsGenerated.WithLabelValues(string(p.Type)).Observe(float64(len(subs)))
	d.log.Debug("decomposed question",
		zap.String("type", string(p.Type)),
		zap.Int("sub_questions", len(subs)))
	return subs, nil
}

// sampleYears applies the granularity rules to a time range:
// an explicit discrete set is used exactly as given (never interpolated);
// spans of up to 5 years sample every year; 6 to 10 years every other year
// with the end year always present; anything longer is reduced to
// MaxSamplePoints evenly spaced years including both endpoints.
func (d *Decomposer) sampleYears(tr qa.TimeRange) []int {
	if len(tr.SpecificYears) > 0 {
		out := append([]int(nil), tr.SpecificYears...)
		sort.Ints(out)
		return out
	}
	years := tr.Years()
	if len(years) == 0 {
		return nil
	}
	span := len(years)
	switch {
	case span <= 5:
		return years
	case span <= 10:
		out := make([]int, 0, span/2+1)
		for i := 0; i < span; i += 2 {
			out = append(out, years[i])
		}
		if out[len(out)-1] != years[span-1] {
			out = append(out, years[span-1])
		}
		return out
	default:
		n := d.config().MaxSamplePoints
		out := make([]int, 0, n)
		for i := 0; i < n; i++ {
			idx := i * (span - 1) / (n - 1)
			y := years[idx]
			if len(out) == 0 || out[len(out)-1] != y {
				out = append(out, y)
			}
		}
		return out
	}
}

func (d *Decomposer) partyList(p qa.Parameters) []string {
	return d.table.CanonicalAll(p.Parties)
}

// topicDimensions resolves a topic into its retrieval dimensions: abstract
// topics expand to their concrete facets, concrete topics pass through.
func (d *Decomposer) topicDimensions(topic string) []string {
	if dims, ok := d.topics.Dimensions(topic); ok {
		return dims
	}
	return []string{topic}
}

func (d *Decomposer) changeAnalysis(p qa.Parameters) []qa.SubQuestion {
	years := d.sampleYears(p.TimeRange)
	if len(years) == 0 {
		return d.summary(p)
	}
	plist := d.partyList(p)

	var subs []qa.SubQuestion
	for _, party := range plist {
		for _, year := range years {
			if len(p.Topics) == 0 {
				subs = append(subs, qa.SubQuestion{
					Text:              fmt.Sprintf("Welche Position vertrat %s im Jahr %d?", partyPhrase(party), year),
					TargetYear:        year,
					TargetParty:       party,
					RetrievalStrategy: qa.StrategySingleYear,
				})
				continue
			}
			for _, topic := range p.Topics {
				for _, dim := range d.topicDimensions(topic) {
					subs = append(subs, qa.SubQuestion{
						Text:              fmt.Sprintf("Welche Position vertrat %s im Jahr %d zum Thema %s?", partyPhrase(party), year, dim),
						TargetYear:        year,
						TargetParty:       party,
						TopicDimension:    dim,
						RetrievalStrategy: qa.StrategySingleYear,
					})
				}
			}
		}
	}

	// A change-over-time framing is only valid for gap-free year sets: asking
	// how a position changed "from 2017 to 2019" when 2018 was never sampled
	// would invite interpolation.
	if len(years) > 1 && qa.ContiguousYears(years) {
		first, last := years[0], years[len(years)-1]
		for _, party := range plist {
			topic := ""
			if len(p.Topics) > 0 {
				topic = " zu " + strings.Join(p.Topics, " und ")
			}
			subs = append(subs, qa.SubQuestion{
				Text:              fmt.Sprintf("Wie hat sich die Position von %s%s zwischen %d und %d verändert?", partyPhrase(party), topic, first, last),
				TargetParty:       party,
				RetrievalStrategy: qa.StrategyMultiYear,
			})
		}
	}
	return subs
}

func (d *Decomposer) summary(p qa.Parameters) []qa.SubQuestion {
	topicSuffix := ""
	if len(p.Topics) > 0 {
		topicSuffix = " zum Thema " + strings.Join(p.Topics, " und ")
	}

	type object struct {
		text  string
		party string
	}
	var objects []object
	switch {
	case len(p.Speakers) > 0:
		for _, s := range p.Speakers {
			objects = append(objects, object{text: s})
		}
	case len(p.Parties) > 0:
		for _, party := range d.partyList(p) {
			objects = append(objects, object{text: partyPhrase(party), party: party})
		}
	case len(p.Topics) > 0:
		for _, topic := range p.Topics {
			for _, dim := range d.topicDimensions(topic) {
				objects = append(objects, object{text: "die Debatte zu " + dim})
			}
		}
		topicSuffix = ""
	default:
		objects = append(objects, object{text: partyPhrase(parties.WholeLegislature), party: parties.WholeLegislature})
	}

	// Beyond two years a single summary blurs distinct legislative phases;
	// regenerate the whole set per sampled year.
	if p.TimeRange.Span() > 2 {
		years := d.sampleYears(p.TimeRange)
		var subs []qa.SubQuestion
		for _, o := range objects {
			for _, y := range years {
				subs = append(subs, qa.SubQuestion{
					Text:              fmt.Sprintf("Was sagte %s im Jahr %d%s?", o.text, y, topicSuffix),
					TargetYear:        y,
					TargetParty:       o.party,
					RetrievalStrategy: qa.StrategySingleYear,
				})
			}
		}
		return subs
	}

	var subs []qa.SubQuestion
	for _, o := range objects {
		sq := qa.SubQuestion{
			Text:              fmt.Sprintf("Was sagte %s%s?", o.text, topicSuffix),
			TargetParty:       o.party,
			RetrievalStrategy: qa.StrategyMultiYear,
		}
		if ys := p.TimeRange.Years(); len(ys) == 1 {
			sq.TargetYear = ys[0]
			sq.RetrievalStrategy = qa.StrategySingleYear
			sq.Text = fmt.Sprintf("Was sagte %s im Jahr %d%s?", o.text, ys[0], topicSuffix)
		}
		subs = append(subs, sq)
	}
	return subs
}

func (d *Decomposer) comparison(p qa.Parameters) []qa.SubQuestion {
	type object struct {
		text  string
		party string
	}
	var objects []object
	if len(p.Speakers) >= 2 {
		for _, s := range p.Speakers {
			objects = append(objects, object{text: s})
		}
	} else {
		plist := d.partyList(p)
		if len(plist) >= 2 {
			for _, party := range plist {
				objects = append(objects, object{text: partyPhrase(party), party: party})
			}
		}
	}
	// One compare-object is no comparison.
	if len(objects) < 2 {
		return d.summary(p)
	}

	topicSuffix := ""
	if len(p.Topics) > 0 {
		topicSuffix = " zum Thema " + strings.Join(p.Topics, " und ")
	}

	buckets := d.sampleYears(p.TimeRange)
	if len(buckets) == 0 {
		buckets = []int{0} // single unconstrained bucket
	}

	var subs []qa.SubQuestion
	for _, y := range buckets {
		for _, o := range objects {
			sq := qa.SubQuestion{
				Text:              fmt.Sprintf("Welche Position vertrat %s%s?", o.text, topicSuffix),
				TargetParty:       o.party,
				RetrievalStrategy: qa.StrategyMultiYear,
			}
			if y != 0 {
				sq.TargetYear = y
				sq.RetrievalStrategy = qa.StrategySingleYear
				sq.Text = fmt.Sprintf("Welche Position vertrat %s im Jahr %d%s?", o.text, y, topicSuffix)
			}
			subs = append(subs, sq)
		}
		names := make([]string, len(objects))
		for i, o := range objects {
			names[i] = o.text
		}
		diff := qa.SubQuestion{
			Text:              fmt.Sprintf("Worin unterschieden sich %s%s?", strings.Join(names, " und "), topicSuffix),
			RetrievalStrategy: qa.StrategyMultiYear,
		}
		if y != 0 {
			diff.TargetYear = y
			diff.RetrievalStrategy = qa.StrategySingleYear
			diff.Text = fmt.Sprintf("Worin unterschieden sich %s im Jahr %d%s?", strings.Join(names, " und "), y, topicSuffix)
		}
		subs = append(subs, diff)
	}
	return subs
}

func (d *Decomposer) trendAnalysis(p qa.Parameters) []qa.SubQuestion {
	years := p.TimeRange.Years()
	if len(years) == 0 {
		return d.summary(p)
	}
	topicSuffix := ""
	if len(p.Topics) > 0 {
		topicSuffix = " zum Thema " + strings.Join(p.Topics, " und ")
	}
	plist := d.partyList(p)
	subject := partyPhrase(plist[0])
	if len(plist) > 1 {
		names := make([]string, len(plist))
		for i, party := range plist {
			names[i] = partyPhrase(party)
		}
		subject = strings.Join(names, " und ")
	}

	buckets := splitBuckets(years, d.config().MaxTrendBuckets)
	var subs []qa.SubQuestion
	for _, b := range buckets {
		sq := qa.SubQuestion{
			RetrievalStrategy: qa.StrategyMultiYear,
		}
		if b[0] == b[1] {
			sq.Text = fmt.Sprintf("Wie positionierte sich %s im Jahr %d%s?", subject, b[0], topicSuffix)
			sq.TargetYear = b[0]
			sq.RetrievalStrategy = qa.StrategySingleYear
		} else {
			sq.Text = fmt.Sprintf("Wie positionierte sich %s zwischen %d und %d%s?", subject, b[0], b[1], topicSuffix)
		}
		if len(plist) == 1 {
			sq.TargetParty = plist[0]
		}
		subs = append(subs, sq)
	}
	overall := qa.SubQuestion{
		Text:              fmt.Sprintf("Welcher Gesamttrend zeigt sich bei %s zwischen %d und %d%s?", subject, years[0], years[len(years)-1], topicSuffix),
		RetrievalStrategy: qa.StrategyMultiYear,
	}
	if len(plist) == 1 {
		overall.TargetParty = plist[0]
	}
	return append(subs, overall)
}

// splitBuckets partitions a contiguous, sorted year list into at most max
// near-equal [first,last] segments.
func splitBuckets(years []int, max int) [][2]int {
	n := len(years)
	k := max
	if n < k {
		k = n
	}
	out := make([][2]int, 0, k)
	for i := 0; i < k; i++ {
		lo := i * n / k
		hi := (i+1)*n/k - 1
		out = append(out, [2]int{years[lo], years[hi]})
	}
	return out
}

// partyPhrase renders a party name as a grammatical subject.
func partyPhrase(party string) string {
	if party == parties.WholeLegislature {
		return "das gesamte Parlament"
	}
	return "die " + party
}
