package vectordb

import "github.com/openparl/plenumqa/internal/parties"

// FilterSpec describes the metadata constraints for one search. The zero
// value means no filtering.
type FilterSpec struct {
	// Years is an explicit discrete year set; when non-empty it wins over
	// StartYear/EndYear. A range built from two discrete years would pull
	// in the intervening ones.
	Years     []int
	StartYear int
	EndYear   int
	Party     string
	// Speakers is an explicit speaker set; when non-empty it wins over the
	// single Speaker equality.
	Speakers []string
	Speaker  string
}

// Build renders the filter as a Qdrant filter body with "must" clauses.
// Returns nil when nothing is constrained.
func (f FilterSpec) Build() map[string]interface{} {
	var must []map[string]interface{}

	switch {
	case len(f.Years) > 0:
		anyYears := make([]interface{}, len(f.Years))
		for i, y := range f.Years {
			anyYears[i] = y
		}
		must = append(must, map[string]interface{}{
			"key":   "year",
			"match": map[string]interface{}{"any": anyYears},
		})
	case f.StartYear != 0:
		end := f.EndYear
		if end == 0 {
			end = f.StartYear
		}
		must = append(must, map[string]interface{}{
			"key":   "year",
			"range": map[string]interface{}{"gte": f.StartYear, "lte": end},
		})
	}

	// The whole-legislature sentinel means no party constraint at all.
	if f.Party != "" && f.Party != parties.All && f.Party != parties.WholeLegislature {
		must = append(must, map[string]interface{}{
			"key":   "party",
			"match": map[string]interface{}{"value": f.Party},
		})
	}

	switch {
	case len(f.Speakers) > 0:
		anySpeakers := make([]interface{}, len(f.Speakers))
		for i, sp := range f.Speakers {
			anySpeakers[i] = sp
		}
		must = append(must, map[string]interface{}{
			"key":   "speaker",
			"match": map[string]interface{}{"any": anySpeakers},
		})
	case f.Speaker != "":
		must = append(must, map[string]interface{}{
			"key":   "speaker",
			"match": map[string]interface{}{"value": f.Speaker},
		})
	}

	if len(must) == 0 {
		return nil
	}
	return map[string]interface{}{"must": must}
}
