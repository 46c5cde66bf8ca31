package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gearhaus/market-runtime/internal/store"
)

// Read-side accessors for the terminal client. These serve straight
// from local storage so every view renders without the network.

func (o *Orchestrator) CurrentUser(ctx context.Context) (store.UserRecord, error) {
	return o.store.CurrentUser(ctx)
}

// SignIn switches the active local account. The account must already
// exist locally; registration flows create it first.
func (o *Orchestrator) SignIn(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if _, err := o.store.LookupUser(ctx, userID); err != nil {
		return err
	}
	return o.store.SetCurrentUser(ctx, userID)
}

func (o *Orchestrator) SignOut(ctx context.Context) error {
	return o.store.SetCurrentUser(ctx, "")
}

func (o *Orchestrator) RegisterUser(ctx context.Context, record store.UserRecord) error {
	if err := o.store.UpsertUser(ctx, record); err != nil {
		return err
	}
	return o.store.SetCurrentUser(ctx, record.ID)
}

func (o *Orchestrator) Conversations(ctx context.Context) ([]store.ConversationRecord, error) {
	return o.store.ListConversations(ctx, 0)
}

func (o *Orchestrator) Messages(ctx context.Context, conversationID string) ([]store.MessageRecord, error) {
	return o.store.ListMessages(ctx, conversationID, 0)
}

func (o *Orchestrator) Notifications(ctx context.Context, unreadOnly bool) ([]store.NotificationRecord, error) {
	return o.store.ListNotifications(ctx, unreadOnly, 0)
}

func (o *Orchestrator) VehicleFAQs(ctx context.Context, vehicleID string) ([]store.VehicleFAQ, error) {
	return o.store.ListVehicleFAQs(ctx, vehicleID)
}

func (o *Orchestrator) Vehicle(ctx context.Context, id string) (store.VehicleRecord, error) {
	return o.store.LookupVehicle(ctx, id)
}

func (o *Orchestrator) User(ctx context.Context, id string) (store.UserRecord, error) {
	return o.store.LookupUser(ctx, id)
}

// PendingWrites reports how many writes are parked in the sync ledger.
func (o *Orchestrator) PendingWrites() int {
	return o.ledger.Len()
}
