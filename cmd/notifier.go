package cmd

import (
	"context"

	"shekkle/events"
	"shekkle/models"

	log "github.com/sirupsen/logrus"
)

// AdminNotifier reports bets that need an admin to resolve them.
// The chat adapter replaces the log line with a direct message.
type AdminNotifier struct {
	adminIDs []int64
}

// NewAdminNotifier creates a notifier for the given admin ids
func NewAdminNotifier(adminIDs []int64) *AdminNotifier {
	return &AdminNotifier{adminIDs: adminIDs}
}

// Subscribe registers the notifier's handlers on the bus
func (n *AdminNotifier) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBetStateChange, n.handleBetStateChange)
	bus.Subscribe(events.EventTypeBetSettled, n.handleBetSettled)
}

func (n *AdminNotifier) handleBetStateChange(_ context.Context, event events.Event) {
	change, ok := event.(events.BetStateChangeEvent)
	if !ok || change.NewState != models.BetStatusPendingResolution {
		return
	}

	if len(n.adminIDs) == 0 {
		log.WithField("bet_id", change.BetID).Warn("Bet awaiting resolution but no admins are configured")
		return
	}

	log.WithFields(log.Fields{
		"bet_id":      change.BetID,
		"description": change.Description,
		"wagers":      change.WagerCount,
		"admin_ids":   n.adminIDs,
	}).Info("Bet deadline passed, awaiting resolution")
}

func (n *AdminNotifier) handleBetSettled(_ context.Context, event events.Event) {
	settled, ok := event.(events.BetSettledEvent)
	if !ok {
		return
	}

	log.WithFields(log.Fields{
		"bet_id": settled.BetID,
		"kind":   settled.Kind,
	}).Debug("Bet settled")
}
