package decompose

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ShayCichocki/waver/pkg/models"
)

// Category names a group of complexity indicator phrases.
type Category string

const (
	CategoryComparative Category = "comparative"
	CategoryAnalytical  Category = "analytical"
	CategoryTemporal    Category = "temporal"
	CategoryAggregative Category = "aggregative"
	CategoryMultiEntity Category = "multi_entity"
	CategoryConditional Category = "conditional"
	CategoryRelational  Category = "relational"
	CategoryLookup      Category = "lookup"
	CategoryStatus      Category = "status"
)

// Categories lists every category in scoring order.
var Categories = []Category{
	CategoryComparative, CategoryAnalytical, CategoryTemporal, CategoryAggregative,
	CategoryMultiEntity, CategoryConditional, CategoryRelational,
	CategoryLookup, CategoryStatus,
}

// Weight returns the score contributed by each phrase match in the category.
func (c Category) Weight() float64 {
	switch c {
	case CategoryComparative, CategoryAnalytical, CategoryTemporal, CategoryAggregative:
		return 3.0
	case CategoryMultiEntity, CategoryConditional, CategoryRelational:
		return 2.0
	case CategoryLookup, CategoryStatus:
		return 1.0
	default:
		return 0
	}
}

// Valid returns true if the category is a known value.
func (c Category) Valid() bool {
	return c.Weight() > 0
}

// Keywords maps categories to lowercase indicator phrases. Phrases match as
// substrings of the lowercased query.
type Keywords map[Category][]string

// DefaultKeywords is the English indicator table.
var DefaultKeywords = Keywords{
	CategoryComparative: {"compare", "comparison", "versus", "vs", "difference between", "better than"},
	CategoryAnalytical:  {"statistics", "analytics", "total", "count", "how many", "all", "list all"},
	CategoryTemporal:    {"last month", "this year", "since", "until", "between dates", "history"},
	CategoryAggregative: {"summary", "overview", "report", "breakdown", "analysis"},
	CategoryMultiEntity: {"and", "or", "both", "either", "multiple", "several"},
	CategoryConditional: {"if", "when", "where", "in case", "depending on"},
	CategoryRelational:  {"related to", "associated with", "linked to", "connected"},
	CategoryLookup:      {"what is", "who is", "where is", "show me", "find"},
	CategoryStatus:      {"status of", "state of", "current", "now"},
}

// SpanishKeywords are the Spanish counterparts merged into the default
// analyzer. Short connectives carry surrounding spaces so they only match as
// words.
var SpanishKeywords = Keywords{
	CategoryComparative: {"comparar", "compara ", "comparación", "diferencia entre", "mejor que", "frente a"},
	CategoryAnalytical:  {"estadísticas", "estadisticas", "cuántos", "cuantos", "cuántas", "cuantas", "todos los", "todas las"},
	CategoryTemporal:    {"último mes", "ultimo mes", "este año", "desde", "hasta", "historial"},
	CategoryAggregative: {"resumen", "informe", "reporte", "desglose", "análisis", "analisis"},
	CategoryMultiEntity: {" y ", " o ", "ambos", "varios", "varias", "múltiples"},
	CategoryConditional: {"si ", "cuando", "en caso de", "dependiendo de"},
	CategoryRelational:  {"relacionado con", "asociado a", "vinculado a", "conectado"},
	CategoryLookup:      {"qué es", "quién es", "dónde está", "cuál es", "cual es", "muéstrame", "muestrame", "busca"},
	CategoryStatus:      {"estado de", "actual", "ahora"},
}

// Merge returns a new table holding the phrases of k followed by the phrases
// of extra not already present. Unknown categories in extra are ignored.
func (k Keywords) Merge(extra Keywords) Keywords {
	out := make(Keywords, len(Categories))
	for _, c := range Categories {
		seen := map[string]bool{}
		for _, src := range []Keywords{k, extra} {
			for _, phrase := range src[c] {
				phrase = strings.ToLower(phrase)
				if phrase == "" || seen[phrase] {
					continue
				}
				seen[phrase] = true
				out[c] = append(out[c], phrase)
			}
		}
	}
	return out
}

// ParseKeywords converts a category-name map, as read from configuration,
// into a Keywords table. Unknown category names are returned separately.
func ParseKeywords(raw map[string][]string) (Keywords, []string) {
	out := Keywords{}
	var unknown []string
	for name, phrases := range raw {
		c := Category(strings.ToLower(name))
		if !c.Valid() {
			unknown = append(unknown, name)
			continue
		}
		out[c] = append(out[c], phrases...)
	}
	sort.Strings(unknown)
	return out, unknown
}

// Analysis is the result of scoring one query.
type Analysis struct {
	Query     string           `json:"query"`
	QueryType models.QueryType `json:"query_type"`
	// Score is clamped to [0, 10].
	Score float64 `json:"complexity_score"`
	// RawScore is the unclamped score used for classification.
	RawScore  float64               `json:"raw_score"`
	WordCount int                   `json:"word_count"`
	Sentences int                   `json:"sentences"`
	Matches   map[Category][]string `json:"matches,omitempty"`
}

// Matched reports whether any phrase of c matched.
func (a *Analysis) Matched(c Category) bool {
	return len(a.Matches[c]) > 0
}

const maxScore = 10.0

// Analyzer scores queries by complexity and classifies them into query types.
// It is immutable and safe for concurrent use.
type Analyzer struct {
	keywords   Keywords
	wholeWords bool
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithExtraKeywords merges k into the analyzer's table.
func WithExtraKeywords(k Keywords) AnalyzerOption {
	return func(a *Analyzer) { a.keywords = a.keywords.Merge(k) }
}

// WithKeywordTable replaces the analyzer's table with exactly k.
func WithKeywordTable(k Keywords) AnalyzerOption {
	return func(a *Analyzer) { a.keywords = Keywords{}.Merge(k) }
}

// WithWholeWords makes phrases match only at word boundaries, so that "or"
// no longer matches inside "order". The default is plain substring matching.
func WithWholeWords(on bool) AnalyzerOption {
	return func(a *Analyzer) { a.wholeWords = on }
}

// NewAnalyzer creates an analyzer over the English and Spanish tables.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{keywords: DefaultKeywords.Merge(SpanishKeywords)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Keywords returns a copy of the analyzer's table.
func (a *Analyzer) Keywords() Keywords {
	return Keywords{}.Merge(a.keywords)
}

func (a *Analyzer) matches(lower, phrase string) bool {
	if !a.wholeWords {
		return strings.Contains(lower, phrase)
	}
	return containsWord(lower, phrase)
}

// containsWord reports whether phrase occurs in s with no letter or digit
// directly before or after it.
func containsWord(s, phrase string) bool {
	trimmed := strings.TrimSpace(phrase)
	if trimmed == "" {
		return false
	}
	for from := 0; from <= len(s); {
		i := strings.Index(s[from:], trimmed)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(trimmed)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// Analyze scores and classifies query.
func (a *Analyzer) Analyze(query string) *Analysis {
	lower := strings.ToLower(query)
	res := &Analysis{Query: query, Matches: map[Category][]string{}}

	for _, c := range Categories {
		for _, phrase := range a.keywords[c] {
			if a.matches(lower, phrase) {
				res.Matches[c] = append(res.Matches[c], phrase)
			}
		}
		res.RawScore += float64(len(res.Matches[c])) * c.Weight()
	}

	res.WordCount = len(strings.Fields(query))
	switch {
	case res.WordCount > 15:
		res.RawScore += 2.0
	case res.WordCount > 10:
		res.RawScore += 1.0
	}

	for _, s := range strings.Split(query, ".") {
		if strings.TrimSpace(s) != "" {
			res.Sentences++
		}
	}
	if res.Sentences > 1 {
		res.RawScore += float64(res.Sentences) * 1.5
	}

	res.QueryType = classify(res)
	res.Score = min(res.RawScore, maxScore)
	return res
}

// classify applies the first matching rule: comparative, analytical,
// multi-entity and lookup phrases, then score thresholds.
func classify(a *Analysis) models.QueryType {
	switch {
	case a.Matched(CategoryComparative):
		return models.QueryTypeComparativeAnalysis
	case a.Matched(CategoryAnalytical):
		if a.RawScore > 5.0 {
			return models.QueryTypeComplexMultiStep
		}
		return models.QueryTypeAnalyticalAggregation
	case a.Matched(CategoryMultiEntity):
		return models.QueryTypeMultiEntityLookup
	case a.Matched(CategoryLookup):
		return models.QueryTypeSingleEntityLookup
	case a.RawScore > 6.0:
		return models.QueryTypeComplexMultiStep
	case a.RawScore > 3.0:
		return models.QueryTypeMultiEntityLookup
	default:
		return models.QueryTypeSimpleInformational
	}
}
