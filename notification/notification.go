package notification

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bitcoin-ai-trader/types"
)

// Priority defines how urgently a notification should be surfaced.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Type classifies what produced the notification.
type Type string

const (
	TypeSignalGenerated Type = "signal_generated"
	TypeOrderExecuted   Type = "order_executed"
	TypeRiskRejected    Type = "risk_rejected"
	TypeSystemAlert     Type = "system_alert"
)

// Notification is a single event surfaced through the API.
type Notification struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  Priority               `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
	Read      bool                   `json:"read"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Manager keeps a bounded, newest-first list of notifications.
type Manager struct {
	mu            sync.RWMutex
	notifications []Notification
	max           int
}

func NewManager(max int) *Manager {
	if max <= 0 {
		max = 100
	}
	return &Manager{max: max}
}

// Add prepends a notification, trimming the oldest past the cap.
func (m *Manager) Add(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	if n.ID == "" {
		n.ID = nextID()
	}

	m.notifications = append([]Notification{n}, m.notifications...)
	if len(m.notifications) > m.max {
		m.notifications = m.notifications[:m.max]
	}
}

// All returns a copy of the notifications, newest first.
func (m *Manager) All() []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// Unread returns the notifications not yet marked read.
func (m *Manager) Unread() []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var unread []Notification
	for _, n := range m.notifications {
		if !n.Read {
			unread = append(unread, n)
		}
	}
	return unread
}

// ByType filters by notification type.
func (m *Manager) ByType(t Type) []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []Notification
	for _, n := range m.notifications {
		if n.Type == t {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// BySymbol filters by the symbol in metadata or the message text.
func (m *Manager) BySymbol(symbol string) []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []Notification
	for _, n := range m.notifications {
		if sym, ok := n.Metadata["symbol"].(string); ok && sym == symbol {
			filtered = append(filtered, n)
			continue
		}
		if strings.Contains(n.Title, symbol) || strings.Contains(n.Message, symbol) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// MarkRead flags one notification as read, reporting whether it existed.
func (m *Manager) MarkRead(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flags every notification as read.
func (m *Manager) MarkAllRead() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		m.notifications[i].Read = true
	}
}

// Delete removes a notification by ID, reporting whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, n := range m.notifications {
		if n.ID == id {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops all notifications.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = nil
}

// SignalGenerated builds a notification for an emitted trading signal.
// HOLD signals get low priority so they do not drown out actionable ones.
func SignalGenerated(opinion types.SignalOpinion) Notification {
	priority := PriorityMedium
	if opinion.Action == types.ActionHold {
		priority = PriorityLow
	}
	return Notification{
		ID:       nextID(),
		Type:     TypeSignalGenerated,
		Title:    fmt.Sprintf("%s %s signal", opinion.Symbol, opinion.Action),
		Message:  fmt.Sprintf("%s %s at %.0f%% confidence: %s", opinion.Action, opinion.Symbol, opinion.Confidence*100, opinion.Reasoning),
		Priority: priority,
		Metadata: map[string]interface{}{
			"symbol":     opinion.Symbol,
			"action":     opinion.Action,
			"confidence": opinion.Confidence,
		},
	}
}

// OrderExecuted builds a notification for a filled order.
func OrderExecuted(trade types.Trade) Notification {
	verb := "Bought"
	if trade.Side == types.SideSell {
		verb = "Sold"
	}
	return Notification{
		ID:       nextID(),
		Type:     TypeOrderExecuted,
		Title:    fmt.Sprintf("%s order executed", trade.Symbol),
		Message:  fmt.Sprintf("%s %.6f %s at $%.2f (cost $%.2f)", verb, trade.Amount, trade.Symbol, trade.Price, trade.Cost),
		Priority: PriorityHigh,
		Metadata: map[string]interface{}{
			"symbol":   trade.Symbol,
			"side":     trade.Side,
			"quantity": trade.Amount,
			"price":    trade.Price,
			"trade_id": trade.ID,
		},
	}
}

// RiskRejected builds a notification for a signal the risk gate blocked.
func RiskRejected(opinion types.SignalOpinion, eval types.RiskEvaluation) Notification {
	return Notification{
		ID:       nextID(),
		Type:     TypeRiskRejected,
		Title:    fmt.Sprintf("%s %s blocked by risk gate", opinion.Symbol, opinion.Action),
		Message:  eval.Recommendation,
		Priority: PriorityMedium,
		Metadata: map[string]interface{}{
			"symbol":     opinion.Symbol,
			"action":     opinion.Action,
			"risk_score": eval.ConfidenceScore,
		},
	}
}

// SystemAlert builds a notification for an operational event.
func SystemAlert(title, message string) Notification {
	return Notification{
		ID:       nextID(),
		Type:     TypeSystemAlert,
		Title:    title,
		Message:  message,
		Priority: PriorityHigh,
	}
}

var idCounter uint64

func nextID() string {
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), atomic.AddUint64(&idCounter, 1))
}
