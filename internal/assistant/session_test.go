package assistant

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestSession_Window(t *testing.T) {
	s := NewSession()
	for i := range 12 {
		s.AddTurn(Turn{UserMessage: fmt.Sprintf("m%d", i), Intent: "simple_informational"})
	}
	if s.Len() != maxSessionTurns {
		t.Fatalf("Len() = %d, want %d", s.Len(), maxSessionTurns)
	}
	recent := s.Recent(3)
	var got []string
	for _, turn := range recent {
		got = append(got, turn.UserMessage)
	}
	if !slices.Equal(got, []string{"m9", "m10", "m11"}) {
		t.Errorf("Recent(3) = %v", got)
	}
	if first := s.Recent(100)[0].UserMessage; first != "m2" {
		t.Errorf("oldest kept = %s, want m2", first)
	}
}

func TestSession_Stage(t *testing.T) {
	tests := []struct {
		turns int
		want  Stage
	}{
		{0, StageGreeting},
		{1, StageExploration},
		{2, StageExploration},
		{5, StageAssistance},
		{8, StageResolution},
		{9, StageExtendedSupport},
	}
	for _, tt := range tests {
		s := NewSession()
		for range tt.turns {
			s.AddTurn(Turn{UserMessage: "hola"})
		}
		if got := s.Info().Stage; got != tt.want {
			t.Errorf("stage after %d turns = %s, want %s", tt.turns, got, tt.want)
		}
	}
}

func TestSession_Summary(t *testing.T) {
	s := NewSession()
	if got := s.Summary(); got != "Nueva conversación" {
		t.Errorf("empty Summary() = %q", got)
	}
	s.AddTurn(Turn{UserMessage: "x"})
	if got := s.Summary(); got != "Conversación general" {
		t.Errorf("bare Summary() = %q", got)
	}

	s.AddTurn(Turn{Intent: "single_entity_lookup", OrderIDs: []string{"ORD001"}, Keywords: []string{"estado", "pedido"}})
	s.AddTurn(Turn{Intent: "single_entity_lookup", OrderIDs: []string{"ORD001"}, Keywords: []string{"camisetas", "tallas"}})
	s.AddTurn(Turn{Intent: "comparative_analysis"})
	want := "Pedidos consultados: ORD001 | Palabras clave: estado, pedido, camisetas | Temas recientes: single_entity_lookup, comparative_analysis"
	if got := s.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestSession_Frustration(t *testing.T) {
	s := NewSession()
	for range 4 {
		s.AddTurn(Turn{UserMessage: "esto no funciona", Sentiment: -1})
	}
	info := s.Info()
	if info.FrustrationLevel != 8 {
		t.Errorf("FrustrationLevel = %d, want 8", info.FrustrationLevel)
	}
	if !info.ShouldEscalate || !info.NeedsEmpathy {
		t.Errorf("info = %+v, want escalation and empathy", info)
	}
	if !slices.Contains(info.FollowUps, FollowUpHumanAssistance) {
		t.Errorf("FollowUps = %v", info.FollowUps)
	}
	hints := s.Hints()
	if hints.Tone != "empathetic" || hints.Urgency != "high" || !hints.ShouldApologize {
		t.Errorf("Hints() = %+v", hints)
	}

	for range 10 {
		s.AddTurn(Turn{UserMessage: "gracias", Sentiment: 1})
	}
	if got := s.Info().FrustrationLevel; got != 0 {
		t.Errorf("FrustrationLevel after praise = %d, want 0", got)
	}
}

func TestSession_FrustrationPhraseWithoutSentiment(t *testing.T) {
	s := NewSession()
	s.AddTurn(Turn{UserMessage: "estoy harto de esperar"})
	if got := s.Info().FrustrationLevel; got != 2 {
		t.Errorf("FrustrationLevel = %d, want 2", got)
	}
}

func TestSession_EscalationRequests(t *testing.T) {
	s := NewSession()
	s.AddTurn(Turn{UserMessage: "quiero hablar con una persona", Escalation: true})
	if s.ShouldEscalate() {
		t.Fatal("one request should not escalate")
	}
	s.AddTurn(Turn{UserMessage: "¿hola?"})
	s.AddTurn(Turn{UserMessage: "un supervisor, por favor", Escalation: true})
	if !s.ShouldEscalate() {
		t.Error("two requests in the last three turns should escalate")
	}
}

func TestSession_FollowUps(t *testing.T) {
	s := NewSession()
	s.AddTurn(Turn{Keywords: []string{"camisetas"}})
	if got := s.Info().FollowUps; !slices.Equal(got, []string{FollowUpPurchaseAssistance}) {
		t.Errorf("FollowUps = %v", got)
	}
	s.AddTurn(Turn{OrderIDs: []string{"ORD001"}})
	if got := s.Info().FollowUps; !slices.Equal(got, []string{FollowUpTrackingUpdates}) {
		t.Errorf("FollowUps = %v", got)
	}
	for range 6 {
		s.AddTurn(Turn{})
	}
	if got := s.Info().FollowUps; !slices.Contains(got, FollowUpSummarize) {
		t.Errorf("FollowUps after 8 turns = %v", got)
	}
}

func TestSession_PromptContext(t *testing.T) {
	s := NewSession()
	if got := s.PromptContext(); got != "" {
		t.Errorf("empty PromptContext() = %q", got)
	}
	s.AddTurn(Turn{UserMessage: "¿Estado del pedido ORD001?", BotResponse: "Tu pedido ORD001 está en camino.", OrderIDs: []string{"ORD001"}})
	got := s.PromptContext()
	for _, want := range []string{
		"Contexto de la conversación: Pedidos consultados: ORD001",
		"Cliente: ¿Estado del pedido ORD001?\nAsistente: Tu pedido ORD001 está en camino.",
		"Frustración del cliente: 0/10",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("PromptContext() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "empático") {
		t.Errorf("calm session asks for empathy: %q", got)
	}
}

func TestSessionSet_EvictsIdle(t *testing.T) {
	ss := newSessionSet()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	old := ss.getOrCreate("old", start)
	old.AddTurn(Turn{Timestamp: start, UserMessage: "hola"})
	ss.getOrCreate("fresh", start)

	if ss.getOrCreate("old", start.Add(48*time.Hour)) != old {
		t.Fatal("existing session was replaced")
	}
	ss.getOrCreate("new", start.Add(48*time.Hour))
	if ss.get("old") != nil {
		t.Error("idle session was kept")
	}
	if ss.get("fresh") == nil || ss.len() != 2 {
		t.Errorf("sessions = %d, want fresh and new", ss.len())
	}
}
