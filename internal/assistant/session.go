package assistant

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	maxSessionTurns    = 10
	maxSessionEntities = 20
	sessionIdleTTL     = 24 * time.Hour
)

// Stage is how far a conversation has progressed, by turn count.
type Stage string

const (
	StageGreeting        Stage = "greeting"
	StageExploration     Stage = "exploration"
	StageAssistance      Stage = "assistance"
	StageResolution      Stage = "resolution"
	StageExtendedSupport Stage = "extended_support"
)

// Follow-up suggestions reported for a session.
const (
	FollowUpPurchaseAssistance = "offer_purchase_assistance"
	FollowUpTrackingUpdates    = "offer_tracking_updates"
	FollowUpHumanAssistance    = "offer_human_assistance"
	FollowUpSummarize          = "summarize_and_confirm"
)

// FrustrationPhrases raise the frustration level regardless of sentiment.
var FrustrationPhrases = []string{
	"no funciona", "problema", "mal", "terrible", "horrible",
	"no entiendes", "no sirve", "perdiendo tiempo", "frustrado",
	"enojado", "molesto", "cansado de", "harto",
}

// EscalationPhrases mark a request to talk to a person.
var EscalationPhrases = []string{
	"hablar con un humano", "hablar con una persona", "hablar con alguien",
	"agente humano", "persona real", "supervisor",
}

// Turn is one exchange kept in a session's window.
type Turn struct {
	Timestamp   time.Time `json:"timestamp"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Intent      string    `json:"intent"`
	OrderIDs    []string  `json:"order_ids,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	Sentiment   float64   `json:"sentiment"`
	Escalation  bool      `json:"escalation_request,omitempty"`
}

// Hints tune the tone of generated answers.
type Hints struct {
	Tone              string `json:"tone"`
	Urgency           string `json:"urgency"`
	ShouldApologize   bool   `json:"should_apologize"`
	OfferAlternatives bool   `json:"should_offer_alternatives"`
	Stage             Stage  `json:"conversation_stage"`
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	Summary           string   `json:"conversation_summary"`
	Stage             Stage    `json:"conversation_stage"`
	Turns             int      `json:"conversation_length"`
	FrustrationLevel  int      `json:"frustration_level"`
	SatisfactionScore int      `json:"satisfaction_score"`
	AverageSentiment  float64  `json:"average_sentiment"`
	ShouldEscalate    bool     `json:"should_escalate"`
	NeedsEmpathy      bool     `json:"needs_empathy"`
	FollowUps         []string `json:"follow_up_suggestions"`
}

// Session holds the last ten turns of one conversation and the customer's
// mood across it. The average sentiment covers the same window. It is safe
// for concurrent use.
type Session struct {
	mu           sync.Mutex
	turns        []Turn
	intents      []string
	escalations  []bool
	sentiments   []float64
	orderIDs     []string
	keywords     []string
	frustration  int
	satisfaction int
	lastActive   time.Time
}

// NewSession creates an empty session with neutral satisfaction.
func NewSession() *Session {
	return &Session{satisfaction: 5}
}

// AddTurn records an exchange, keeping the last ten, and updates the
// frustration and satisfaction levels.
func (s *Session) AddTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	s.turns = lastN(append(s.turns, t), maxSessionTurns)
	s.intents = lastN(append(s.intents, t.Intent), maxSessionTurns)
	s.escalations = lastN(append(s.escalations, t.Escalation), maxSessionTurns)
	s.sentiments = lastN(append(s.sentiments, t.Sentiment), maxSessionTurns)
	s.orderIDs = lastN(appendUnique(s.orderIDs, t.OrderIDs...), maxSessionEntities)
	s.keywords = lastN(appendUnique(s.keywords, t.Keywords...), maxSessionEntities)
	s.lastActive = t.Timestamp

	words := normalizedWords(t.UserMessage)
	switch {
	case countPhrases(words, FrustrationPhrases) > 0 || t.Sentiment < -0.3:
		s.frustration = min(10, s.frustration+2)
	case t.Sentiment > 0.3:
		s.frustration = max(0, s.frustration-1)
	}
	switch {
	case s.frustration > 7:
		s.satisfaction = max(1, s.satisfaction-2)
	case s.frustration < 3:
		s.satisfaction = min(10, s.satisfaction+1)
	}
}

func lastN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// Recent returns up to n of the latest turns, oldest first.
func (s *Session) Recent(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := max(len(s.turns)-n, 0)
	return slices.Clone(s.turns[start:])
}

// Len returns the number of turns in the window.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Summary describes the orders, keywords and recent topics of the session.
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() string {
	if len(s.turns) == 0 {
		return "Nueva conversación"
	}
	var parts []string
	if len(s.orderIDs) > 0 {
		parts = append(parts, "Pedidos consultados: "+strings.Join(s.orderIDs, ", "))
	}
	if len(s.keywords) > 0 {
		parts = append(parts, "Palabras clave: "+strings.Join(s.keywords[:min(3, len(s.keywords))], ", "))
	}
	var topics []string
	for _, intent := range s.intents[max(len(s.intents)-3, 0):] {
		topics = appendUnique(topics, intent)
	}
	if len(topics) > 0 {
		parts = append(parts, "Temas recientes: "+strings.Join(topics, ", "))
	}
	if len(parts) == 0 {
		return "Conversación general"
	}
	return strings.Join(parts, " | ")
}

func (s *Session) stageLocked() Stage {
	switch n := len(s.turns); {
	case n == 0:
		return StageGreeting
	case n <= 2:
		return StageExploration
	case n <= 5:
		return StageAssistance
	case n <= 8:
		return StageResolution
	default:
		return StageExtendedSupport
	}
}

// ShouldEscalate reports whether a human agent should take over: high
// frustration, low satisfaction, or two requests for a person among the
// last three messages.
func (s *Session) ShouldEscalate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldEscalateLocked()
}

func (s *Session) shouldEscalateLocked() bool {
	requests := 0
	for _, e := range s.escalations[max(len(s.escalations)-3, 0):] {
		if e {
			requests++
		}
	}
	return s.frustration >= 8 || requests >= 2 || s.satisfaction <= 3
}

// NeedsEmpathy reports whether answers should acknowledge the customer's mood.
func (s *Session) NeedsEmpathy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsEmpathyLocked()
}

func (s *Session) needsEmpathyLocked() bool {
	return s.frustration >= 5 || s.satisfaction <= 5
}

// Hints returns the tone settings for the next answer.
func (s *Session) Hints() Hints {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := Hints{
		Tone:              "professional",
		Urgency:           "normal",
		ShouldApologize:   s.frustration >= 6,
		OfferAlternatives: len(s.turns) > 3 && s.satisfaction < 7,
		Stage:             s.stageLocked(),
	}
	if s.needsEmpathyLocked() {
		h.Tone = "empathetic"
	}
	if s.frustration >= 7 {
		h.Urgency = "high"
	}
	return h
}

func (s *Session) followUpsLocked() []string {
	out := []string{}
	if len(s.keywords) > 0 && len(s.orderIDs) == 0 {
		out = append(out, FollowUpPurchaseAssistance)
	}
	if len(s.orderIDs) > 0 {
		out = append(out, FollowUpTrackingUpdates)
	}
	if s.satisfaction < 5 {
		out = append(out, FollowUpHumanAssistance)
	}
	if len(s.turns) > 7 {
		out = append(out, FollowUpSummarize)
	}
	return out
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	avg := 0.0
	if len(s.sentiments) > 0 {
		for _, v := range s.sentiments {
			avg += v
		}
		avg /= float64(len(s.sentiments))
	}
	return SessionInfo{
		Summary:           s.summaryLocked(),
		Stage:             s.stageLocked(),
		Turns:             len(s.turns),
		FrustrationLevel:  s.frustration,
		SatisfactionScore: s.satisfaction,
		AverageSentiment:  avg,
		ShouldEscalate:    s.shouldEscalateLocked(),
		NeedsEmpathy:      s.needsEmpathyLocked(),
		FollowUps:         s.followUpsLocked(),
	}
}

// PromptContext renders the session for a language model prompt. It is
// empty before the first turn.
func (s *Session) PromptContext() string {
	if s.Len() == 0 {
		return ""
	}
	info := s.Info()
	hints := s.Hints()

	var b strings.Builder
	fmt.Fprintf(&b, "Contexto de la conversación: %s\n", info.Summary)
	b.WriteString("Conversación reciente:\n")
	for _, t := range s.Recent(3) {
		fmt.Fprintf(&b, "Cliente: %s\nAsistente: %s\n", truncate(t.UserMessage, 200), truncate(t.BotResponse, 200))
	}
	fmt.Fprintf(&b, "Frustración del cliente: %d/10\n", info.FrustrationLevel)
	if hints.ShouldApologize {
		b.WriteString("- El cliente está frustrado, sé empático\n")
	}
	if info.ShouldEscalate {
		b.WriteString("- Ofrece transferir la conversación a un agente humano\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// sessionSet tracks sessions by id, dropping those idle past sessionIdleTTL.
type sessionSet struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionSet() *sessionSet {
	return &sessionSet{sessions: make(map[string]*Session)}
}

func (ss *sessionSet) get(id string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.sessions[id]
}

func (ss *sessionSet) getOrCreate(id string, now time.Time) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if s, ok := ss.sessions[id]; ok {
		return s
	}
	for other, s := range ss.sessions {
		s.mu.Lock()
		idle := !s.lastActive.IsZero() && now.Sub(s.lastActive) > sessionIdleTTL
		s.mu.Unlock()
		if idle {
			delete(ss.sessions, other)
		}
	}
	s := NewSession()
	ss.sessions[id] = s
	return s
}

func (ss *sessionSet) len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}
