// Package assistant answers shop customers' messages, routing complex
// questions through the decomposer and orchestrator and simple ones straight
// to the language model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/ShayCichocki/waver/internal/decompose"
	"github.com/ShayCichocki/waver/internal/llm"
	"github.com/ShayCichocki/waver/internal/orchestrator"
	"github.com/ShayCichocki/waver/internal/store"
	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

// Mode selects how messages are routed.
type Mode string

const (
	// ModeSimple never uses the orchestrator.
	ModeSimple Mode = "simple"
	// ModeAgentic always uses the orchestrator.
	ModeAgentic Mode = "agentic"
	// ModeAdaptive decides per message.
	ModeAdaptive Mode = "adaptive"
)

// Valid returns true if the mode is a known value.
func (m Mode) Valid() bool {
	switch m {
	case ModeSimple, ModeAgentic, ModeAdaptive:
		return true
	default:
		return false
	}
}

// Processing modes reported in a Response.
const (
	ProcessingAgentic     = "agentic"
	ProcessingTraditional = "traditional"
)

var (
	// ErrInvalidMode is returned by SetMode for unknown modes.
	ErrInvalidMode = errors.New("invalid processing mode")
	// ErrEmptyMessage is returned by Process for blank messages.
	ErrEmptyMessage = errors.New("empty message")
)

// Replies used when no language model answer is usable.
const (
	ApologyReply  = "Lo siento, en este momento no puedo responder a tu consulta. Por favor intenta nuevamente más tarde."
	GreetingReply = "¡Hola! Soy tu asistente virtual. ¿En qué puedo ayudarte hoy?"
	ThanksReply   = "¡De nada! ¿Hay algo más en lo que pueda ayudarte?"
)

// Indicator phrases that send a message to the orchestrator in adaptive mode.
var (
	ComparativeIndicators = []string{"compare", "comparison", "versus", "vs", "difference between", "mejor que", "comparar", "diferencia entre"}
	MultiEntityIndicators = []string{"and", "y", "both", "ambos", "multiple", "varios", "all", "todos"}
	CalculationIndicators = []string{"total", "count", "cuantos", "cuántos", "sum", "average", "percentage"}
)

// AgenticMetadata describes the plan that produced an agentic answer.
type AgenticMetadata struct {
	ExecutionID     string           `json:"execution_id"`
	ExecutionTime   float64          `json:"execution_time"`
	TasksExecuted   int              `json:"tasks_executed"`
	QueryType       models.QueryType `json:"query_type"`
	ComplexityScore float64          `json:"complexity_score"`
	Stalled         bool             `json:"stalled,omitempty"`
}

// Response is the answer to one message.
type Response struct {
	Response        string           `json:"respuesta"`
	QueryType       models.QueryType `json:"query_type"`
	ComplexityScore float64          `json:"complexity_score"`
	ProcessingMode  string           `json:"processing_mode"`
	SessionID       string           `json:"session_id"`
	Timestamp       time.Time        `json:"timestamp"`
	Sentiment       string           `json:"sentiment"`
	Agentic         *AgenticMetadata `json:"agentic_metadata,omitempty"`
	ContextData     map[string]any   `json:"context_data,omitempty"`
	Session         *SessionInfo     `json:"session_context,omitempty"`
}

// Metrics combines orchestrator counters with tool registry information.
type Metrics struct {
	Mode         Mode                            `json:"processing_mode"`
	Orchestrator orchestrator.PerformanceMetrics `json:"orchestrator_metrics"`
	ToolRegistry ToolRegistryInfo                `json:"tool_registry_info"`
}

// ToolRegistryInfo summarizes the registered tools.
type ToolRegistryInfo struct {
	TotalTools int              `json:"total_tools"`
	ToolNames  []string         `json:"tool_names"`
	UsageStats map[string]int64 `json:"usage_stats"`
	Tools      []tools.Info     `json:"tools"`
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLLM sets the generator used for direct answers and rephrasing.
func WithLLM(g llm.Generator) Option {
	return func(a *Assistant) { a.llm = g }
}

// WithStore saves every exchange in s.
func WithStore(s store.Store) Option {
	return func(a *Assistant) { a.store = s }
}

// WithMode sets the initial processing mode. Invalid modes are ignored.
func WithMode(m Mode) Option {
	return func(a *Assistant) {
		if m.Valid() {
			a.mode = m
		}
	}
}

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(a *Assistant) {
		if id != "" {
			a.sessionID = id
		}
	}
}

// WithEnhance toggles rephrasing agentic answers with the language model.
func WithEnhance(on bool) Option {
	return func(a *Assistant) { a.enhance = on }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// Assistant is the customer-facing chatbot. It is safe for concurrent use.
type Assistant struct {
	decomposer   *decompose.Decomposer
	orchestrator *orchestrator.Orchestrator
	registry     *tools.Registry
	llm          llm.Generator
	store        store.Store
	logger       *slog.Logger
	sessionID    string
	enhance      bool
	now          func() time.Time
	sessions     *sessionSet

	mu   sync.RWMutex
	mode Mode
}

// New creates an Assistant in adaptive mode with a fresh session id.
func New(d *decompose.Decomposer, o *orchestrator.Orchestrator, r *tools.Registry, opts ...Option) *Assistant {
	a := &Assistant{
		decomposer:   d,
		orchestrator: o,
		registry:     r,
		llm:          llm.Unavailable{},
		logger:       slog.New(slog.DiscardHandler),
		sessionID:    uuid.NewString(),
		enhance:      true,
		now:          time.Now,
		sessions:     newSessionSet(),
		mode:         ModeAdaptive,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SessionID returns the id of the default session used by Process.
func (a *Assistant) SessionID() string { return a.sessionID }

// Session returns the conversation context of sessionID, or nil if it has
// no turns yet.
func (a *Assistant) Session(sessionID string) *Session {
	return a.sessions.get(sessionID)
}

// Mode returns the current processing mode.
func (a *Assistant) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// SetMode changes the processing mode.
func (a *Assistant) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	a.mu.Lock()
	a.mode = m
	a.mu.Unlock()
	a.logger.Info("processing mode changed", "mode", m)
	return nil
}

// ShouldUseAgentic reports whether message is routed to the orchestrator.
func (a *Assistant) ShouldUseAgentic(message string) bool {
	return a.shouldUseAgentic(message, a.decomposer.Analyzer().Analyze(message))
}

func (a *Assistant) shouldUseAgentic(message string, analysis *decompose.Analysis) bool {
	switch a.Mode() {
	case ModeSimple:
		return false
	case ModeAgentic:
		return true
	}
	switch analysis.QueryType {
	case models.QueryTypeAnalyticalAggregation, models.QueryTypeComplexMultiStep:
		return true
	}
	text := normalizedWords(message)
	for _, group := range [][]string{ComparativeIndicators, MultiEntityIndicators, CalculationIndicators} {
		for _, phrase := range group {
			if strings.Contains(text, " "+phrase+" ") {
				return true
			}
		}
	}
	return false
}

// normalizedWords lowercases s and joins its words with single spaces, padded
// so that phrases can be matched on word boundaries.
func normalizedWords(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(words, " ") + " "
}

// Process answers message in the assistant's default session.
func (a *Assistant) Process(ctx context.Context, message string) (*Response, error) {
	return a.ProcessSession(ctx, a.sessionID, message)
}

// ProcessSession answers message with the recent turns of sessionID as
// context, records the turn and saves the exchange. An empty sessionID
// means the default session. It fails only for a blank message or when ctx
// ends before an answer is produced.
func (a *Assistant) ProcessSession(ctx context.Context, sessionID, message string) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = a.sessionID
	}
	session := a.sessions.getOrCreate(sessionID, a.now())
	sentiment := AnalyzeSentiment(message)
	analysis := a.decomposer.Analyzer().Analyze(message)
	resp := &Response{
		QueryType:       analysis.QueryType,
		ComplexityScore: analysis.Score,
		SessionID:       sessionID,
		Sentiment:       SentimentLabel(sentiment),
	}

	history := session.PromptContext()
	answered := false
	if a.shouldUseAgentic(message, analysis) {
		a.logger.Info("using agentic processing", "query", preview(message))
		answered = a.processAgentic(ctx, message, history, resp)
	}
	if !answered {
		a.logger.Info("using traditional processing", "query", preview(message))
		a.processTraditional(ctx, message, history, analysis, resp)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp.Response = cleanOutput(resp.Response)
	resp.Timestamp = a.now()

	session.AddTurn(Turn{
		Timestamp:   resp.Timestamp,
		UserMessage: message,
		BotResponse: resp.Response,
		Intent:      string(resp.QueryType),
		OrderIDs:    orderIDs(message),
		Keywords:    tools.ExtractKeywords(message),
		Sentiment:   sentiment,
		Escalation:  countPhrases(normalizedWords(message), EscalationPhrases) > 0,
	})
	info := session.Info()
	resp.Session = &info
	if info.ShouldEscalate {
		a.logger.Warn("session should be escalated",
			"session_id", sessionID,
			"frustration", info.FrustrationLevel,
			"satisfaction", info.SatisfactionScore,
		)
	}

	a.save(ctx, message, resp)
	return resp, nil
}

// processAgentic fills resp from an executed plan. It returns false when the
// plan could not be built or failed, so the caller falls back.
func (a *Assistant) processAgentic(ctx context.Context, message, history string, resp *Response) bool {
	d, err := a.decomposer.Decompose(ctx, message)
	if err != nil {
		a.logger.Warn("decomposition failed", "error", err)
		return false
	}
	a.logger.Info("query decomposed",
		"tasks", len(d.SubTasks),
		"query_type", d.QueryType,
		"complexity", d.ComplexityScore,
	)

	res := a.orchestrator.ExecuteQueryPlan(ctx, d, map[string]any{
		"user_message": message,
		"session_id":   resp.SessionID,
	})
	if !res.Success {
		a.logger.Warn("agentic execution failed", "execution_id", res.ExecutionID, "error", res.Error)
		return false
	}

	resp.ProcessingMode = ProcessingAgentic
	resp.Response = a.enhanceResponse(ctx, res.Result, message, history)
	resp.ContextData = res.Result
	resp.Agentic = &AgenticMetadata{
		ExecutionID:     res.ExecutionID,
		ExecutionTime:   res.ExecutionTime,
		TasksExecuted:   res.TasksExecuted,
		QueryType:       res.QueryType,
		ComplexityScore: res.ComplexityScore,
		Stalled:         res.Stalled,
	}
	return true
}

const enhancePrompt = `Mejora esta respuesta para que sea más natural y conversacional:
%s
Pregunta original: %s
Datos encontrados: %s

Genera una respuesta natural, amigable y completa en español.`

// enhanceResponse renders a synthesized result and asks the model to rephrase
// it in the light of the conversation so far, falling back to a plain
// rendering.
func (a *Assistant) enhanceResponse(ctx context.Context, result map[string]any, message, history string) string {
	data := Render(result)
	if data != "" && a.enhance && llm.IsAvailable(a.llm) {
		text, err := a.llm.Generate(ctx, llm.Request{
			Prompt:    fmt.Sprintf(enhancePrompt, history, message, data),
			MaxTokens: 200,
		})
		switch {
		case err != nil:
			a.logger.Warn("response enhancement failed", "error", err)
		case usableReply(text):
			return text
		}
	}
	return Fallback(data, message)
}

func (a *Assistant) processTraditional(ctx context.Context, message, history string, analysis *decompose.Analysis, resp *Response) {
	resp.ProcessingMode = ProcessingTraditional
	resp.Response = fallbackReply(message)
	if !llm.IsAvailable(a.llm) {
		return
	}
	complexity := llm.ComplexitySimple
	if analysis.QueryType == models.QueryTypeComplexMultiStep {
		complexity = llm.ComplexityComplex
	}
	prompt := message
	if history != "" {
		prompt = history + "\nMensaje del cliente: " + message
	}
	text, err := a.llm.Generate(ctx, llm.Request{
		Prompt:     prompt,
		Complexity: complexity,
		MaxTokens:  150,
	})
	if err != nil {
		a.logger.Warn("direct answer failed", "error", err)
		return
	}
	if usableReply(text) {
		resp.Response = text
	}
}

// orderIDs returns the order codes in message that carry a digit, which
// leaves out words such as "pedido".
func orderIDs(message string) []string {
	var out []string
	for _, id := range tools.ExtractEntities(message).OrderIDs {
		if strings.ContainsFunc(id, unicode.IsDigit) {
			out = append(out, id)
		}
	}
	return out
}

// usableReply rejects empty answers and the provider's error or quota texts.
func usableReply(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, bad := range []string{"error", "no está disponible"} {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return true
}

// fallbackReply answers greetings and thanks, and apologizes otherwise.
func fallbackReply(message string) string {
	text := normalizedWords(message)
	for _, greeting := range []string{"hola", "hi", "hello", "buenos días", "buenas"} {
		if strings.Contains(text, " "+greeting+" ") {
			return GreetingReply
		}
	}
	if strings.Contains(text, " gracias ") {
		return ThanksReply
	}
	return ApologyReply
}

func (a *Assistant) save(ctx context.Context, message string, resp *Response) {
	if a.store == nil {
		return
	}
	_, err := a.store.SaveConversation(ctx, store.Conversation{
		UserMessage: message,
		BotResponse: resp.Response,
		Intent:      string(resp.QueryType),
	})
	if err != nil {
		a.logger.Warn("failed to save conversation", "error", err)
	}
}

// Conversations returns up to limit saved exchanges, newest first.
func (a *Assistant) Conversations(ctx context.Context, limit int) ([]store.Conversation, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.RecentConversations(ctx, limit)
}

// Metrics returns the orchestrator counters and tool registry information.
func (a *Assistant) Metrics() Metrics {
	names := a.registry.Names()
	return Metrics{
		Mode:         a.Mode(),
		Orchestrator: a.orchestrator.PerformanceMetrics(),
		ToolRegistry: ToolRegistryInfo{
			TotalTools: len(names),
			ToolNames:  names,
			UsageStats: a.registry.UsageStats(),
			Tools:      a.registry.Infos(),
		},
	}
}

func cleanOutput(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "[DATOS BD]", ""))
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return text
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
