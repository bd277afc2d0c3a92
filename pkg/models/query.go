package models

// QueryType is the complexity bucket a query is classified into.
type QueryType string

const (
	// QueryTypeSimpleInformational is a plain question answered conversationally.
	QueryTypeSimpleInformational QueryType = "simple_informational"
	// QueryTypeSingleEntityLookup looks up one order, product or policy.
	QueryTypeSingleEntityLookup QueryType = "single_entity_lookup"
	// QueryTypeMultiEntityLookup gathers several kinds of records.
	QueryTypeMultiEntityLookup QueryType = "multi_entity_lookup"
	// QueryTypeComparativeAnalysis compares two datasets.
	QueryTypeComparativeAnalysis QueryType = "comparative_analysis"
	// QueryTypeAnalyticalAggregation aggregates business data into a report.
	QueryTypeAnalyticalAggregation QueryType = "analytical_aggregation"
	// QueryTypeComplexMultiStep needs a multi-step plan, optionally from the LLM.
	QueryTypeComplexMultiStep QueryType = "complex_multi_step"
)

// Valid returns true if the query type is a known value.
func (q QueryType) Valid() bool {
	switch q {
	case QueryTypeSimpleInformational, QueryTypeSingleEntityLookup, QueryTypeMultiEntityLookup,
		QueryTypeComparativeAnalysis, QueryTypeAnalyticalAggregation, QueryTypeComplexMultiStep:
		return true
	default:
		return false
	}
}

// ResponseFormat returns the response format produced for this query type.
func (q QueryType) ResponseFormat() ResponseFormat {
	switch q {
	case QueryTypeSimpleInformational:
		return FormatConversational
	case QueryTypeSingleEntityLookup:
		return FormatStructured
	case QueryTypeMultiEntityLookup:
		return FormatStructuredList
	case QueryTypeComparativeAnalysis:
		return FormatComparisonTable
	case QueryTypeAnalyticalAggregation:
		return FormatAnalyticalReport
	case QueryTypeComplexMultiStep:
		return FormatComprehensiveReport
	default:
		return FormatConversational
	}
}

// EstimatedExecutionTime returns the informational time estimate, in seconds.
// It is never used for scheduling.
func (q QueryType) EstimatedExecutionTime() float64 {
	switch q {
	case QueryTypeSimpleInformational:
		return 1.0
	case QueryTypeSingleEntityLookup:
		return 2.0
	case QueryTypeMultiEntityLookup:
		return 3.0
	case QueryTypeComparativeAnalysis:
		return 4.0
	case QueryTypeAnalyticalAggregation:
		return 5.0
	case QueryTypeComplexMultiStep:
		return 7.0
	default:
		return 2.0
	}
}

// ResponseFormat tags the shape the orchestrator synthesizes results into.
type ResponseFormat string

const (
	FormatConversational      ResponseFormat = "conversational"
	FormatStructured          ResponseFormat = "structured"
	FormatStructuredList      ResponseFormat = "structured_list"
	FormatComparisonTable     ResponseFormat = "comparison_table"
	FormatAnalyticalReport    ResponseFormat = "analytical_report"
	FormatComprehensiveReport ResponseFormat = "comprehensive_report"
	FormatDefault             ResponseFormat = "default"
)

// Valid returns true if the format is a known value.
func (f ResponseFormat) Valid() bool {
	switch f {
	case FormatConversational, FormatStructured, FormatStructuredList, FormatComparisonTable,
		FormatAnalyticalReport, FormatComprehensiveReport, FormatDefault:
		return true
	default:
		return false
	}
}

// Strategy records how a decomposition was produced.
type Strategy string

const (
	// StrategyHeuristic means the per-type built-in strategy was used.
	StrategyHeuristic Strategy = "heuristic"
	// StrategyLLM means the sub-tasks were proposed by the language model.
	StrategyLLM Strategy = "llm"
)

// QueryDecomposition is the immutable output of the decomposer.
type QueryDecomposition struct {
	// OriginalQuery is the user's text.
	OriginalQuery string `json:"original_query"`
	// QueryType is the classified bucket.
	QueryType QueryType `json:"query_type"`
	// ComplexityScore is in the range [0, 10].
	ComplexityScore float64 `json:"complexity_score"`
	// SubTasks are the planned tasks in creation order.
	SubTasks []*SubTask `json:"sub_tasks"`
	// ExpectedResponseFormat selects the synthesis formatter.
	ExpectedResponseFormat ResponseFormat `json:"expected_response_format"`
	// EstimatedExecutionTime is informational, in seconds.
	EstimatedExecutionTime float64 `json:"estimated_execution_time"`
	// Strategy records whether the plan came from the heuristics or the LLM.
	Strategy Strategy `json:"strategy"`
}
