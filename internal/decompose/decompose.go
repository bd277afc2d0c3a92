// Package decompose classifies natural-language queries and breaks them into
// dependency-ordered sub-tasks for the orchestrator.
package decompose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/waver/internal/llm"
	"github.com/ShayCichocki/waver/internal/metrics"
	"github.com/ShayCichocki/waver/pkg/models"
)

// DefaultLLMTimeout bounds the model call of the complex-query path.
const DefaultLLMTimeout = 30 * time.Second

// DefaultToolNames are the tools a model-proposed plan may use.
var DefaultToolNames = []string{"database_query", "calculation", "text_processing"}

// Decomposer breaks queries into sub-tasks. It is safe for concurrent use;
// task ids come from one counter per instance.
type Decomposer struct {
	analyzer   *Analyzer
	llm        llm.Generator
	llmEnabled bool
	llmTimeout time.Duration
	validator  *Validator
	namespace  string
	counter    atomic.Int64

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithAnalyzer replaces the default analyzer.
func WithAnalyzer(a *Analyzer) Option {
	return func(d *Decomposer) { d.analyzer = a }
}

// WithLLM sets the generator for complex queries. The model path is only
// taken when enabled is true and the generator is available.
func WithLLM(g llm.Generator, enabled bool) Option {
	return func(d *Decomposer) {
		d.llm = g
		d.llmEnabled = enabled
	}
}

// WithLLMTimeout bounds each model call; zero keeps DefaultLLMTimeout.
func WithLLMTimeout(timeout time.Duration) Option {
	return func(d *Decomposer) {
		if timeout > 0 {
			d.llmTimeout = timeout
		}
	}
}

// WithToolNames sets the tools model-proposed plans may reference.
func WithToolNames(names []string) Option {
	return func(d *Decomposer) { d.validator = NewValidator(names) }
}

// WithIDNamespace prefixes task ids with ns, as in "ns/task_001".
func WithIDNamespace(ns string) Option {
	return func(d *Decomposer) { d.namespace = ns }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decomposer) { d.logger = l }
}

// WithMetrics records decompositions in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Decomposer) { d.metrics = m }
}

// New creates a Decomposer.
func New(opts ...Option) *Decomposer {
	d := &Decomposer{
		analyzer:   NewAnalyzer(),
		llm:        llm.Unavailable{},
		llmTimeout: DefaultLLMTimeout,
		validator:  NewValidator(DefaultToolNames),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Analyzer returns the analyzer used for classification.
func (d *Decomposer) Analyzer() *Analyzer {
	return d.analyzer
}

// Decompose classifies query and builds its sub-task plan. It only fails
// when ctx is already done.
func (d *Decomposer) Decompose(ctx context.Context, query string) (*models.QueryDecomposition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	analysis := d.analyzer.Analyze(query)
	d.logger.Info("query analyzed",
		"query_type", analysis.QueryType,
		"complexity", analysis.Score,
	)

	strategy := models.StrategyHeuristic
	var tasks []*models.SubTask
	switch analysis.QueryType {
	case models.QueryTypeSimpleInformational:
		tasks = d.simple(query)
	case models.QueryTypeSingleEntityLookup:
		tasks = d.lookup(query)
	case models.QueryTypeMultiEntityLookup:
		tasks = d.multiLookup(query)
	case models.QueryTypeComparativeAnalysis:
		tasks = d.comparative(query)
	case models.QueryTypeAnalyticalAggregation:
		tasks = d.analytical(query)
	case models.QueryTypeComplexMultiStep:
		tasks, strategy = d.complex(ctx, query)
	default:
		tasks = d.simple(query)
	}

	decomposition := &models.QueryDecomposition{
		OriginalQuery:          query,
		QueryType:              analysis.QueryType,
		ComplexityScore:        analysis.Score,
		SubTasks:               tasks,
		ExpectedResponseFormat: analysis.QueryType.ResponseFormat(),
		EstimatedExecutionTime: analysis.QueryType.EstimatedExecutionTime(),
		Strategy:               strategy,
	}
	d.metrics.ObserveDecomposition(string(analysis.QueryType), string(strategy), analysis.Score)
	return decomposition, nil
}

func (d *Decomposer) nextID() string {
	n := d.counter.Add(1)
	if d.namespace != "" {
		return fmt.Sprintf("%s/task_%03d", d.namespace, n)
	}
	return fmt.Sprintf("task_%03d", n)
}

func (d *Decomposer) task(t models.TaskType, tool, description string, params map[string]any, priority int, deps ...string) *models.SubTask {
	return &models.SubTask{
		ID:           d.nextID(),
		Type:         t,
		Description:  description,
		ToolName:     tool,
		Parameters:   params,
		Dependencies: deps,
		Priority:     priority,
	}
}

func (d *Decomposer) text(description string, params map[string]any, priority int, deps ...string) *models.SubTask {
	return d.task(models.TaskTypeTextProcessing, "text_processing", description, params, priority, deps...)
}

func (d *Decomposer) database(description, queryType string, priority int, deps ...string) *models.SubTask {
	return d.task(models.TaskTypeDatabaseQuery, "database_query", description,
		map[string]any{"query_type": queryType, "params": map[string]any{}}, priority, deps...)
}

func (d *Decomposer) statistics(description string, priority int, deps ...string) *models.SubTask {
	return d.task(models.TaskTypeCalculation, "calculation", description,
		map[string]any{"operation": "statistics", "data": []any{}}, priority, deps...)
}

func (d *Decomposer) synthesis(description, formatType string, params map[string]any, priority int, deps ...string) *models.SubTask {
	if params == nil {
		params = map[string]any{}
	}
	params["operation"] = "format_response"
	params["format_type"] = formatType
	return d.task(models.TaskTypeResponseSynthesis, "text_processing", description, params, priority, deps...)
}

func extract(operation, query string) map[string]any {
	return map[string]any{"operation": operation, "text": query}
}

func containsAny(query string, words ...string) bool {
	lower := strings.ToLower(query)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (d *Decomposer) simple(query string) []*models.SubTask {
	keywords := d.text("Extract key information from query", extract("extract_keywords", query), 1)
	respond := d.synthesis("Generate conversational response", "default",
		map[string]any{"text": query}, 2, keywords.ID)
	return []*models.SubTask{keywords, respond}
}

func (d *Decomposer) lookup(query string) []*models.SubTask {
	entities := d.text("Extract entities from query", extract("extract_entities", query), 1)

	var db *models.SubTask
	switch {
	case containsAny(query, "order", "pedido", "purchase"):
		db = d.database("Lookup order information", "order_lookup", 2, entities.ID)
	case containsAny(query, "product", "producto", "item"):
		db = d.database("Search for products", "product_search", 2, entities.ID)
	default:
		db = d.database("Get company information", "company_policies", 2, entities.ID)
	}

	format := d.synthesis("Format structured response", "structured", nil, 3, db.ID)
	return []*models.SubTask{entities, db, format}
}

func (d *Decomposer) multiLookup(query string) []*models.SubTask {
	keywords := d.text("Extract multiple entities and keywords", extract("extract_keywords", query), 1)

	var data []*models.SubTask
	if containsAny(query, "customer", "cliente") {
		data = append(data, d.database("Get customer data", "customer_analytics", 2, keywords.ID))
	}
	if containsAny(query, "order", "pedido") {
		data = append(data, d.database("Get order data", "order_analytics", 2, keywords.ID))
	}
	if containsAny(query, "product", "producto") {
		data = append(data, d.database("Get product data", "product_analytics", 2, keywords.ID))
	}
	if len(data) == 0 {
		data = append(data, d.database("Get business summary", "business_summary", 2, keywords.ID))
	}

	deps := make([]string, len(data))
	for i, t := range data {
		deps[i] = t.ID
	}
	combine := d.synthesis("Combine multiple data sources", "structured_list", nil, 3, deps...)

	tasks := append([]*models.SubTask{keywords}, data...)
	return append(tasks, combine)
}

func (d *Decomposer) comparative(query string) []*models.SubTask {
	keywords := d.text("Extract comparison entities", extract("extract_keywords", query), 1)
	first := d.database("Get first comparison dataset", "business_summary", 2, keywords.ID)
	second := d.database("Get second comparison dataset", "business_summary", 2, keywords.ID)
	calc := d.statistics("Calculate comparison metrics", 3, first.ID, second.ID)
	table := d.synthesis("Format comparison table", "comparison_table", nil, 4, calc.ID)
	return []*models.SubTask{keywords, first, second, calc, table}
}

func (d *Decomposer) analytical(query string) []*models.SubTask {
	keywords := d.text("Extract analytical requirements", extract("extract_keywords", query), 1)
	data := d.database("Get analytical data", "business_summary", 2, keywords.ID)
	stats := d.statistics("Calculate statistical metrics", 3, data.ID)
	report := d.synthesis("Generate analytical report", "analytical_report", nil, 4, stats.ID)
	return []*models.SubTask{keywords, data, stats, report}
}

func (d *Decomposer) complexHeuristic(query string) []*models.SubTask {
	entities := d.text("Extract all entities and keywords", extract("extract_entities", query), 1)
	data := d.database("Get comprehensive business data", "business_summary", 2, entities.ID)
	stats := d.statistics("Perform comprehensive analysis", 3, data.ID)
	report := d.synthesis("Generate comprehensive report", "comprehensive_report", nil, 4, stats.ID)
	return []*models.SubTask{entities, data, stats, report}
}

// complex asks the model for a plan when enabled, falling back to the
// heuristic chain on any failure.
func (d *Decomposer) complex(ctx context.Context, query string) ([]*models.SubTask, models.Strategy) {
	if !d.llmEnabled || !llm.IsAvailable(d.llm) {
		return d.complexHeuristic(query), models.StrategyHeuristic
	}
	tasks, err := d.llmPlan(ctx, query)
	if err != nil {
		d.logger.Warn("llm decomposition failed, falling back to heuristic", "error", err)
		return d.complexHeuristic(query), models.StrategyHeuristic
	}
	return tasks, models.StrategyLLM
}

func (d *Decomposer) llmPlan(ctx context.Context, query string) ([]*models.SubTask, error) {
	ctx, cancel := context.WithTimeout(ctx, d.llmTimeout)
	defer cancel()

	response, err := d.llm.Generate(ctx, llm.Request{
		Prompt:     fmt.Sprintf(planPrompt, query),
		Complexity: llm.ComplexityComplex,
		Raw:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	tasks, err := ParseResponse(response, d.nextID)
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	result := d.validator.Validate(tasks)
	if err := result.Err(); err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		d.logger.Debug("llm plan warning", "warning", w)
	}
	return tasks, nil
}
