package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ShayCichocki/waver/internal/decompose"
	"github.com/ShayCichocki/waver/internal/llm"
	"github.com/ShayCichocki/waver/internal/orchestrator"
	"github.com/ShayCichocki/waver/internal/store"
	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

type fakeGenerator struct {
	reply string
	err   error

	mu       sync.Mutex
	requests []llm.Request
}

func (f *fakeGenerator) Name() string    { return "fake" }
func (f *fakeGenerator) Available() bool { return true }

func (f *fakeGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.reply, f.err
}

func (f *fakeGenerator) lastRequest(t *testing.T) llm.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("generator was not called")
	}
	return f.requests[len(f.requests)-1]
}

func newAssistant(t *testing.T, opts ...Option) (*Assistant, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	reg := tools.NewDefaultRegistry(mem)
	orch, err := orchestrator.New(reg)
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}
	t.Cleanup(orch.Close)
	opts = append([]Option{WithStore(mem), WithSessionID("session-1")}, opts...)
	return New(decompose.New(), orch, reg, opts...), mem
}

func TestSetMode(t *testing.T) {
	a, _ := newAssistant(t)
	if a.Mode() != ModeAdaptive {
		t.Fatalf("default mode = %s, want adaptive", a.Mode())
	}
	if err := a.SetMode(ModeSimple); err != nil {
		t.Fatalf("SetMode(simple) error = %v", err)
	}
	if a.Mode() != ModeSimple {
		t.Errorf("mode = %s, want simple", a.Mode())
	}
	if err := a.SetMode("turbo"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("SetMode(turbo) error = %v, want ErrInvalidMode", err)
	}
	if a.Mode() != ModeSimple {
		t.Errorf("invalid mode changed state to %s", a.Mode())
	}
}

func TestShouldUseAgentic(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		message string
		want    bool
	}{
		{"greeting", ModeAdaptive, "hola", false},
		{"comparative", ModeAdaptive, "compara camisetas versus pantalones", true},
		{"multi entity word", ModeAdaptive, "pedidos y clientes", true},
		{"connective inside word", ModeAdaptive, "hoy quiero saber algo", false},
		{"counting", ModeAdaptive, "¿Cuántos pedidos hay?", true},
		{"english total", ModeAdaptive, "what is the total", true},
		{"simple mode", ModeSimple, "¿Cuántos pedidos hay?", false},
		{"agentic mode", ModeAgentic, "hola", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAssistant(t, WithMode(tt.mode))
			if got := a.ShouldUseAgentic(tt.message); got != tt.want {
				t.Errorf("ShouldUseAgentic(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestProcess_AgenticFallbackFormatting(t *testing.T) {
	a, mem := newAssistant(t)
	ctx := context.Background()

	resp, err := a.Process(ctx, "¿Cuántos pedidos y clientes tenemos?")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.ProcessingMode != ProcessingAgentic {
		t.Fatalf("ProcessingMode = %s, want agentic", resp.ProcessingMode)
	}
	if !strings.HasPrefix(resp.Response, "Según los datos disponibles, el total es ") {
		t.Errorf("Response = %q", resp.Response)
	}
	if resp.Agentic == nil || !strings.HasPrefix(resp.Agentic.ExecutionID, "exec_") {
		t.Fatalf("Agentic = %+v", resp.Agentic)
	}
	if resp.Agentic.TasksExecuted == 0 {
		t.Error("no tasks executed")
	}
	if resp.ContextData["format"] != string(models.FormatAnalyticalReport) {
		t.Errorf("context format = %v", resp.ContextData["format"])
	}
	if resp.SessionID != "session-1" {
		t.Errorf("SessionID = %q", resp.SessionID)
	}

	saved, err := mem.RecentConversations(ctx, 10)
	if err != nil {
		t.Fatalf("RecentConversations() error = %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("saved %d conversations, want 1", len(saved))
	}
	if saved[0].BotResponse != resp.Response || saved[0].Intent != string(resp.QueryType) {
		t.Errorf("saved = %+v", saved[0])
	}
}

func TestProcess_AgenticEnhanced(t *testing.T) {
	gen := &fakeGenerator{reply: "Tenemos **8** pedidos de 5 clientes."}
	a, _ := newAssistant(t, WithLLM(gen))

	resp, err := a.Process(context.Background(), "¿Cuántos pedidos y clientes tenemos?")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Response != gen.reply {
		t.Errorf("Response = %q, want %q", resp.Response, gen.reply)
	}
	req := gen.lastRequest(t)
	if req.MaxTokens != 200 {
		t.Errorf("MaxTokens = %d, want 200", req.MaxTokens)
	}
	if !strings.Contains(req.Prompt, "Pregunta original: ¿Cuántos pedidos y clientes tenemos?") {
		t.Errorf("prompt = %q", req.Prompt)
	}
}

func TestProcess_AgenticEnhancementRejected(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"error text", &fakeGenerator{reply: "Error: quota exceeded"}},
		{"empty", &fakeGenerator{reply: "  "}},
		{"call failure", &fakeGenerator{err: errors.New("boom")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAssistant(t, WithLLM(tt.gen))
			resp, err := a.Process(context.Background(), "¿Cuántos pedidos y clientes tenemos?")
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if !strings.HasPrefix(resp.Response, "Según los datos disponibles") {
				t.Errorf("Response = %q, want fallback formatting", resp.Response)
			}
		})
	}
}

func TestProcess_EnhanceDisabled(t *testing.T) {
	gen := &fakeGenerator{reply: "nunca"}
	a, _ := newAssistant(t, WithLLM(gen), WithEnhance(false))
	resp, err := a.Process(context.Background(), "¿Cuántos pedidos y clientes tenemos?")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Response == gen.reply {
		t.Error("enhancement ran while disabled")
	}
}

func TestProcess_TraditionalWithoutLLM(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"hola", GreetingReply},
		{"Muchas gracias", ThanksReply},
		{"quiero hablar con alguien", ApologyReply},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			a, _ := newAssistant(t)
			resp, err := a.Process(context.Background(), tt.message)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if resp.ProcessingMode != ProcessingTraditional {
				t.Errorf("ProcessingMode = %s, want traditional", resp.ProcessingMode)
			}
			if resp.Response != tt.want {
				t.Errorf("Response = %q, want %q", resp.Response, tt.want)
			}
			if resp.Agentic != nil {
				t.Error("traditional answer carries agentic metadata")
			}
		})
	}
}

func TestProcess_TraditionalWithLLM(t *testing.T) {
	gen := &fakeGenerator{reply: "Claro,  te  ayudo [DATOS BD] con eso."}
	a, _ := newAssistant(t, WithLLM(gen))

	resp, err := a.Process(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Response != "Claro, te ayudo con eso." {
		t.Errorf("Response = %q", resp.Response)
	}
	req := gen.lastRequest(t)
	if req.Prompt != "hola" || req.MaxTokens != 150 || req.Raw {
		t.Errorf("request = %+v", req)
	}
}

func TestProcess_TraditionalUnavailableReply(t *testing.T) {
	gen := &fakeGenerator{reply: "El servicio no está disponible"}
	a, _ := newAssistant(t, WithLLM(gen))
	resp, err := a.Process(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Response != GreetingReply {
		t.Errorf("Response = %q, want greeting fallback", resp.Response)
	}
}

func TestProcess_Errors(t *testing.T) {
	a, mem := newAssistant(t)
	if _, err := a.Process(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank message error = %v, want ErrEmptyMessage", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Process(ctx, "¿Cuántos pedidos hay?"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled error = %v, want context.Canceled", err)
	}
	saved, _ := mem.RecentConversations(context.Background(), 0)
	if len(saved) != 0 {
		t.Errorf("saved %d conversations for failed requests", len(saved))
	}
	if s := a.Session("session-1"); s != nil && s.Len() != 0 {
		t.Errorf("recorded %d turns for failed requests", s.Len())
	}
}

func TestProcess_ConversationContext(t *testing.T) {
	gen := &fakeGenerator{reply: "Tenemos 8 pedidos."}
	a, _ := newAssistant(t, WithLLM(gen))
	ctx := context.Background()

	first, err := a.Process(ctx, "¿Cuántos pedidos y clientes tenemos?")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if strings.Contains(gen.lastRequest(t).Prompt, "Contexto de la conversación") {
		t.Error("first prompt carries conversation context")
	}
	if first.Session == nil || first.Session.Turns != 1 || first.Sentiment != SentimentNeutral {
		t.Errorf("first response session = %+v, sentiment = %s", first.Session, first.Sentiment)
	}

	second, err := a.Process(ctx, "Gracias, ¿dónde está mi pedido ORD001?")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	prompt := gen.lastRequest(t).Prompt
	for _, want := range []string{
		"Cliente: ¿Cuántos pedidos y clientes tenemos?",
		"Asistente: Tenemos 8 pedidos.",
		"Gracias, ¿dónde está mi pedido ORD001?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt = %q, missing %q", prompt, want)
		}
	}
	if second.Sentiment != SentimentVeryPositive {
		t.Errorf("Sentiment = %s", second.Sentiment)
	}
	if second.Session.Turns != 2 || !strings.Contains(second.Session.Summary, "Pedidos consultados: ORD001") {
		t.Errorf("session = %+v", second.Session)
	}
}

func TestProcessSession_SeparateSessions(t *testing.T) {
	a, _ := newAssistant(t)
	ctx := context.Background()

	for _, msg := range []string{"hola", "¿Estado del pedido ORD001?"} {
		if _, err := a.ProcessSession(ctx, "cliente-1", msg); err != nil {
			t.Fatalf("ProcessSession() error = %v", err)
		}
	}
	resp, err := a.ProcessSession(ctx, "cliente-2", "hola")
	if err != nil {
		t.Fatalf("ProcessSession() error = %v", err)
	}
	if resp.SessionID != "cliente-2" || resp.Session.Turns != 1 {
		t.Errorf("cliente-2 response = %s %+v", resp.SessionID, resp.Session)
	}
	if got := a.Session("cliente-1").Len(); got != 2 {
		t.Errorf("cliente-1 turns = %d, want 2", got)
	}
	if a.Session("session-1") != nil {
		t.Error("default session was created")
	}

	resp, _ = a.ProcessSession(ctx, "", "hola")
	if resp.SessionID != "session-1" {
		t.Errorf("empty session id = %q, want default", resp.SessionID)
	}
}

func TestProcess_EscalationAfterRepeatedRequests(t *testing.T) {
	a, _ := newAssistant(t)
	ctx := context.Background()

	resp, _ := a.Process(ctx, "Quiero hablar con una persona")
	if resp.Session.ShouldEscalate {
		t.Fatal("escalated after one request")
	}
	resp, _ = a.Process(ctx, "Por favor, un supervisor")
	if !resp.Session.ShouldEscalate {
		t.Errorf("session = %+v, want escalation", resp.Session)
	}
}

func TestMetrics(t *testing.T) {
	a, _ := newAssistant(t, WithMode(ModeAgentic))
	if _, err := a.Process(context.Background(), "¿Cuántos pedidos hay?"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	m := a.Metrics()
	if m.Mode != ModeAgentic {
		t.Errorf("Mode = %s", m.Mode)
	}
	if m.Orchestrator.TotalExecutions != 1 || m.Orchestrator.SuccessfulExecutions != 1 {
		t.Errorf("orchestrator metrics = %+v", m.Orchestrator)
	}
	if m.ToolRegistry.TotalTools != 3 || len(m.ToolRegistry.Tools) != 3 {
		t.Errorf("tool registry = %+v", m.ToolRegistry)
	}
	if m.ToolRegistry.UsageStats["database_query"] == 0 {
		t.Errorf("usage stats = %v", m.ToolRegistry.UsageStats)
	}
}
