// Package notify delivers operator alerts for pipeline events to one or
// more channels (Telegram, Discord). Events can be filtered so operators
// receive only what they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantfold/sibyl/internal/domain"
)

// Event classifies a notification.
type Event string

const (
	EventBet        Event = "bet"        // a position was opened
	EventResolution Event = "resolution" // a position settled
	EventCycleError Event = "cycle_error"
	EventDrift      Event = "drift" // ledger drift was corrected
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to all senders whose event filter admits them.
// An empty filter admits everything. Delivery failures are logged and
// collected but never block the pipeline.
type Notifier struct {
	senders []Sender
	events  map[Event]bool
	logger  *slog.Logger
}

// New creates a Notifier delivering to the given senders. events limits
// which event types are forwarded; empty means all.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[Event]bool, len(events))
	for _, e := range events {
		allowed[Event(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// BetPlaced announces a newly opened position.
func (n *Notifier) BetPlaced(ctx context.Context, pos domain.Position, edge float64) {
	n.notify(ctx, EventBet, "Bet placed", fmt.Sprintf(
		"%s\n%s @ $%.2f for $%.2f (edge %+.1f%%, pays $%.2f)",
		pos.Question, pos.Outcome, pos.Price, pos.Cost, edge*100, pos.PotentialPayout))
}

// Settled announces a won or lost position.
func (n *Notifier) Settled(ctx context.Context, pos domain.Position) {
	pnl := 0.0
	if pos.PnL != nil {
		pnl = *pos.PnL
	}
	title := "Position lost"
	if pos.Status == domain.PositionStatusWon {
		title = "Position won"
	}
	n.notify(ctx, EventResolution, title, fmt.Sprintf(
		"%s\n%s @ $%.2f, pnl $%+.2f", pos.Question, pos.Outcome, pos.Price, pnl))
}

// CycleError announces a cycle that ended in an error.
func (n *Notifier) CycleError(ctx context.Context, cycle int64, err error) {
	n.notify(ctx, EventCycleError, "Cycle failed",
		fmt.Sprintf("cycle %d: %v", cycle, err))
}

// DriftCorrected announces a ledger reconciliation.
func (n *Notifier) DriftCorrected(ctx context.Context, recorded, expected float64) {
	n.notify(ctx, EventDrift, "Balance drift corrected", fmt.Sprintf(
		"recorded $%.2f, expected $%.2f, delta $%+.2f",
		recorded, expected, recorded-expected))
}

func (n *Notifier) notify(ctx context.Context, event Event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		return
	}
	if len(n.senders) == 0 {
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", string(event)),
				slog.String("error", err.Error()),
			)
		}
	}
}
