// Package app wires the runtime services together and owns the
// write path: apply locally first, then push to the backend, parking
// the write in the sync ledger when the backend is unreachable.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gearhaus/market-runtime/internal/dedup"
	"github.com/gearhaus/market-runtime/internal/markerr"
	"github.com/gearhaus/market-runtime/internal/mutate"
	"github.com/gearhaus/market-runtime/internal/remote"
	"github.com/gearhaus/market-runtime/internal/signals"
	"github.com/gearhaus/market-runtime/internal/store"
	"github.com/gearhaus/market-runtime/internal/syncq"
)

// Backend is the slice of the remote client the orchestrator uses.
type Backend interface {
	AppendMessage(ctx context.Context, message remote.Message) error
	SaveConversation(ctx context.Context, conversation remote.Conversation) error
	SaveNotification(ctx context.Context, notification remote.Notification) error
	UpdateVehicle(ctx context.Context, vehicleID string, fields map[string]any) error
	ListVehicles(ctx context.Context, city string, limit int) ([]remote.Vehicle, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]remote.Notification, error)
}

// Kicker requests an eager sync pass. Implemented by syncq.Worker.
type Kicker interface {
	Kick()
}

type Orchestrator struct {
	store   *store.Store
	ledger  *syncq.Ledger
	kicker  Kicker
	backend Backend
	toasts  *dedup.ToastCenter
	shown   *dedup.ShownTracker
	gate    *mutate.Gate
	bus     *signals.Bus
	loaded  *loadedSet
	logger  *slog.Logger

	loadingTimeout time.Duration
	loadingMu      sync.Mutex
	loading        bool
	loadingTimer   *time.Timer

	refreshSeq atomic.Int64
}

func NewOrchestrator(
	persisted *store.Store,
	ledger *syncq.Ledger,
	kicker Kicker,
	backend Backend,
	toasts *dedup.ToastCenter,
	shown *dedup.ShownTracker,
	gate *mutate.Gate,
	bus *signals.Bus,
	loadingTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if loadingTimeout <= 0 {
		loadingTimeout = 20 * time.Second
	}
	return &Orchestrator{
		store:          persisted,
		ledger:         ledger,
		kicker:         kicker,
		backend:        backend,
		toasts:         toasts,
		shown:          shown,
		gate:           gate,
		bus:            bus,
		loaded:         newLoadedSet(),
		logger:         logger.With("component", "orchestrator"),
		loadingTimeout: loadingTimeout,
	}
}

// SendMessage stores the message locally, then tries the backend.
// A transient failure parks the message in the sync ledger; the user
// keeps their optimistic copy either way.
func (o *Orchestrator) SendMessage(ctx context.Context, conversationID, senderID, body string) (store.MessageRecord, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return store.MessageRecord{}, fmt.Errorf("message body is required")
	}
	message := store.MessageRecord{
		ID:             uuid.NewString(),
		ConversationID: strings.TrimSpace(conversationID),
		SenderID:       strings.TrimSpace(senderID),
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.store.AppendMessage(ctx, message); err != nil {
		return store.MessageRecord{}, fmt.Errorf("store message: %w", err)
	}
	o.bus.Publish(signals.Event{Kind: signals.KindConversationUpdated, Payload: message.ConversationID})

	err := o.backend.AppendMessage(ctx, remote.Message{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Body:           message.Body,
		SentAtUnix:     message.CreatedAt.Unix(),
	})
	if err == nil {
		if err := o.store.MarkMessageDelivered(ctx, message.ID); err != nil {
			o.logger.Warn("mark delivered", "message", message.ID, "error", err)
		}
		message.Delivered = true
		return message, nil
	}

	o.handleWriteFailure(ctx, err, syncq.KindMessageAppend, message.ID, map[string]any{
		"id":             message.ID,
		"conversationId": message.ConversationID,
		"senderId":       message.SenderID,
		"body":           message.Body,
	}, "message will send when you are back online")
	return message, nil
}

// UpdateVehicle applies a field update locally and pushes it out,
// behind the per-vehicle mutation gate. A second update for the same
// vehicle while one is in flight is dropped.
func (o *Orchestrator) UpdateVehicle(ctx context.Context, vehicleID string, fields map[string]any) error {
	ran, err := o.gate.Do(vehicleID, func() error {
		if err := o.store.ApplyVehicleUpdates(ctx, vehicleID, fields); err != nil {
			return fmt.Errorf("apply vehicle updates: %w", err)
		}
		o.bus.Publish(signals.Event{Kind: signals.KindVehiclesUpdated, Payload: vehicleID})

		err := o.backend.UpdateVehicle(ctx, vehicleID, fields)
		if err == nil {
			o.raiseToast(dedup.ToastSuccess, "listing saved")
			return nil
		}
		o.handleWriteFailure(ctx, err, syncq.KindVehicleUpdate, vehicleID, map[string]any{
			"id":     vehicleID,
			"fields": fields,
		}, "listing saved locally, sync pending")
		return nil
	})
	if err != nil {
		return err
	}
	if !ran {
		o.logger.Debug("vehicle update dropped, mutation in flight", "vehicle", vehicleID)
	}
	return nil
}

// SaveConversation upserts the conversation locally and syncs it.
func (o *Orchestrator) SaveConversation(ctx context.Context, conversation store.ConversationRecord) error {
	if err := o.store.UpsertConversation(ctx, conversation); err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	err := o.backend.SaveConversation(ctx, remote.Conversation{
		ID:          conversation.ID,
		VehicleID:   conversation.VehicleID,
		BuyerID:     conversation.BuyerID,
		SellerID:    conversation.SellerID,
		LastMessage: conversation.LastMessageText,
	})
	if err == nil {
		return nil
	}
	o.handleWriteFailure(ctx, err, syncq.KindConversationSave, conversation.ID, map[string]any{
		"id":          conversation.ID,
		"vehicleId":   conversation.VehicleID,
		"buyerId":     conversation.BuyerID,
		"sellerId":    conversation.SellerID,
		"lastMessage": conversation.LastMessageText,
	}, "")
	return nil
}

// AddVehicleFAQ stores the entry locally and pushes it to the backend
// through the vehicle update contract, behind the same per-vehicle
// gate as field updates. The sync task is keyed by the FAQ id, so a
// queued FAQ never displaces a pending field update for the vehicle.
func (o *Orchestrator) AddVehicleFAQ(ctx context.Context, vehicleID, question, answer string) error {
	faq := store.VehicleFAQ{
		ID:        uuid.NewString(),
		VehicleID: strings.TrimSpace(vehicleID),
		Question:  strings.TrimSpace(question),
		Answer:    strings.TrimSpace(answer),
		CreatedAt: time.Now().UTC(),
	}
	if faq.Question == "" {
		return fmt.Errorf("question is required")
	}
	if faq.VehicleID == "" {
		return fmt.Errorf("vehicle id is required")
	}

	ran, err := o.gate.Do(faq.VehicleID, func() error {
		if err := o.store.AddVehicleFAQ(ctx, faq); err != nil {
			return fmt.Errorf("store faq: %w", err)
		}
		o.bus.Publish(signals.Event{Kind: signals.KindVehiclesUpdated, Payload: faq.VehicleID})

		fields := map[string]any{
			"faqId":       faq.ID,
			"faqQuestion": faq.Question,
			"faqAnswer":   faq.Answer,
		}
		err := o.backend.UpdateVehicle(ctx, faq.VehicleID, fields)
		if err == nil {
			return nil
		}
		o.handleWriteFailure(ctx, err, syncq.KindVehicleUpdate, faq.ID, map[string]any{
			"id":     faq.VehicleID,
			"fields": fields,
		}, "question saved locally, sync pending")
		return nil
	})
	if err != nil {
		return err
	}
	if !ran {
		o.logger.Debug("faq dropped, vehicle mutation in flight", "vehicle", faq.VehicleID)
	}
	return nil
}

// HandleNotification records an inbound notification and decides
// whether to alert. Foreground arrivals render in place without a
// toast; a notification already shown never alerts again.
func (o *Orchestrator) HandleNotification(ctx context.Context, notification store.NotificationRecord, foreground bool) error {
	if err := o.store.UpsertNotification(ctx, notification); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	o.bus.Publish(signals.Event{Kind: signals.KindNotificationArrived, Payload: notification.ID})
	if o.shown.MarkIfUnshown(notification.ID, foreground) {
		o.raiseToast(dedup.ToastInfo, notification.Title)
	}
	return nil
}

// MarkNotificationRead flips the read flag locally and syncs it.
func (o *Orchestrator) MarkNotificationRead(ctx context.Context, id string) error {
	if err := o.store.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	notification, err := o.store.LookupNotification(ctx, id)
	if err != nil {
		return err
	}
	err = o.backend.SaveNotification(ctx, remote.Notification{
		ID:     notification.ID,
		UserID: notification.UserID,
		Title:  notification.Title,
		Body:   notification.Body,
		Read:   true,
	})
	if err == nil {
		return nil
	}
	o.handleWriteFailure(ctx, err, syncq.KindNotificationSave, notification.ID, map[string]any{
		"id":     notification.ID,
		"userId": notification.UserID,
		"title":  notification.Title,
		"body":   notification.Body,
		"read":   true,
	}, "")
	return nil
}

// WarmFromStore loads the local catalog into memory so the client
// renders immediately, before any network refresh completes.
func (o *Orchestrator) WarmFromStore(ctx context.Context) error {
	vehicles, err := o.store.ListVehicles(ctx, 0)
	if err != nil {
		return fmt.Errorf("list local vehicles: %w", err)
	}
	for _, record := range vehicles {
		o.loaded.put(record)
	}
	if len(vehicles) > 0 {
		o.bus.Publish(signals.Event{Kind: signals.KindVehiclesUpdated})
	}
	return nil
}

// Refresh pulls the catalog and notifications. A refresh that was
// superseded by a newer one discards its results instead of applying
// stale rows over fresher ones.
func (o *Orchestrator) Refresh(ctx context.Context, city string, foreground bool) error {
	sequence := o.refreshSeq.Add(1)
	o.beginLoading()
	defer o.endLoading()

	vehicles, err := o.backend.ListVehicles(ctx, city, 0)
	if err != nil {
		if markerr.Transient(err) {
			o.logger.Warn("catalog refresh skipped, backend unreachable", "error", err)
			return nil
		}
		return fmt.Errorf("list vehicles: %w", err)
	}
	if o.refreshSeq.Load() != sequence {
		o.logger.Debug("discarding stale refresh results", "sequence", sequence)
		return nil
	}

	for _, vehicle := range vehicles {
		record := store.VehicleRecord{
			ID:          vehicle.ID,
			Title:       vehicle.Title,
			Make:        vehicle.Make,
			Model:       vehicle.Model,
			Year:        vehicle.Year,
			PriceCents:  vehicle.PriceCents,
			MileageKM:   vehicle.MileageKM,
			SellerID:    vehicle.SellerID,
			Status:      vehicle.Status,
			Description: vehicle.Description,
			City:        vehicle.City,
		}
		if err := o.store.UpsertVehicle(ctx, record); err != nil {
			o.logger.Warn("upsert refreshed vehicle", "vehicle", vehicle.ID, "error", err)
			continue
		}
		o.loaded.put(record)
	}
	o.bus.Publish(signals.Event{Kind: signals.KindVehiclesUpdated})

	o.refreshNotifications(ctx, foreground)
	return nil
}

func (o *Orchestrator) refreshNotifications(ctx context.Context, foreground bool) {
	user, err := o.store.CurrentUser(ctx)
	if err != nil {
		return
	}
	notifications, err := o.backend.ListNotifications(ctx, user.ID, false)
	if err != nil {
		o.logger.Warn("notification refresh failed", "error", err)
		return
	}

	liveIDs := make([]string, 0, len(notifications))
	for _, notification := range notifications {
		liveIDs = append(liveIDs, notification.ID)
		record := store.NotificationRecord{
			ID:        notification.ID,
			UserID:    notification.UserID,
			Title:     notification.Title,
			Body:      notification.Body,
			Read:      notification.Read,
			CreatedAt: time.Unix(notification.CreatedAtUnix, 0).UTC(),
		}
		if err := o.HandleNotification(ctx, record, foreground); err != nil {
			o.logger.Warn("handle refreshed notification", "notification", notification.ID, "error", err)
		}
	}
	o.shown.Prune(liveIDs)
}

// HandleSyncReport surfaces the outcome of a drain pass.
func (o *Orchestrator) HandleSyncReport(report syncq.Report) {
	if report.Succeeded > 0 {
		o.raiseToast(dedup.ToastSuccess, "offline changes synced")
	}
	if report.Evicted > 0 {
		o.raiseToast(dedup.ToastError, "some changes were rejected and discarded")
	}
	if report.AuthExpired {
		o.raiseToast(dedup.ToastError, "session expired, please sign in again")
	}
	o.bus.Publish(signals.Event{Kind: signals.KindSyncReport, Payload: report})
}

// HandlePushEvent folds one backend push event into local state.
func (o *Orchestrator) HandlePushEvent(ctx context.Context, event remote.PushEvent) {
	switch {
	case event.Notification != nil:
		record := store.NotificationRecord{
			ID:        event.Notification.ID,
			UserID:    event.Notification.UserID,
			Title:     event.Notification.Title,
			Body:      event.Notification.Body,
			Read:      event.Notification.Read,
			CreatedAt: time.Unix(event.Notification.CreatedAtUnix, 0).UTC(),
		}
		if err := o.HandleNotification(ctx, record, false); err != nil {
			o.logger.Warn("handle pushed notification", "error", err)
		}
	case event.Message != nil:
		record := store.MessageRecord{
			ID:             event.Message.ID,
			ConversationID: event.Message.ConversationID,
			SenderID:       event.Message.SenderID,
			Body:           event.Message.Body,
			Delivered:      true,
			CreatedAt:      time.Unix(event.Message.SentAtUnix, 0).UTC(),
		}
		if err := o.store.AppendMessage(ctx, record); err != nil {
			o.logger.Warn("append pushed message", "error", err)
			return
		}
		o.bus.Publish(signals.Event{Kind: signals.KindConversationUpdated, Payload: record.ConversationID})
	case event.Vehicle != nil:
		record := store.VehicleRecord{
			ID:         event.Vehicle.ID,
			Title:      event.Vehicle.Title,
			Make:       event.Vehicle.Make,
			Model:      event.Vehicle.Model,
			Year:       event.Vehicle.Year,
			PriceCents: event.Vehicle.PriceCents,
			MileageKM:  event.Vehicle.MileageKM,
			SellerID:   event.Vehicle.SellerID,
			Status:     event.Vehicle.Status,
			City:       event.Vehicle.City,
		}
		if err := o.store.UpsertVehicle(ctx, record); err != nil {
			o.logger.Warn("upsert pushed vehicle", "error", err)
			return
		}
		o.loaded.put(record)
		o.bus.Publish(signals.Event{Kind: signals.KindVehiclesUpdated, Payload: record.ID})
	}
}

// Loading reports whether a foreground load is in progress.
func (o *Orchestrator) Loading() bool {
	o.loadingMu.Lock()
	defer o.loadingMu.Unlock()
	return o.loading
}

func (o *Orchestrator) beginLoading() {
	o.loadingMu.Lock()
	defer o.loadingMu.Unlock()
	o.loading = true
	if o.loadingTimer != nil {
		o.loadingTimer.Stop()
	}
	// Force-clear so a hung request can never pin the spinner.
	o.loadingTimer = time.AfterFunc(o.loadingTimeout, func() {
		o.loadingMu.Lock()
		defer o.loadingMu.Unlock()
		if o.loading {
			o.logger.Warn("loading flag force-cleared after timeout")
			o.loading = false
		}
	})
}

func (o *Orchestrator) endLoading() {
	o.loadingMu.Lock()
	defer o.loadingMu.Unlock()
	o.loading = false
	if o.loadingTimer != nil {
		o.loadingTimer.Stop()
		o.loadingTimer = nil
	}
}

// handleWriteFailure classifies a backend failure. Transient failures
// park the write in the ledger and kick the worker; terminal failures
// surface a toast and drop the write from the sync path, the local
// copy stays.
func (o *Orchestrator) handleWriteFailure(ctx context.Context, cause error, kind syncq.Kind, entityID string, payload map[string]any, queuedMessage string) {
	switch {
	case errors.Is(cause, markerr.ErrAuthExpired):
		o.raiseToast(dedup.ToastError, "session expired, please sign in again")
	case !markerr.Retryable(cause):
		o.logger.Error("write rejected", "kind", kind, "entity", entityID, "error", cause)
		o.raiseToast(dedup.ToastError, "change was rejected by the server")
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			o.logger.Error("encode pending payload", "kind", kind, "entity", entityID, "error", err)
			return
		}
		if _, err := o.ledger.Enqueue(ctx, kind, entityID, encoded); err != nil {
			o.logger.Error("enqueue pending write", "kind", kind, "entity", entityID, "error", err)
			return
		}
		o.kicker.Kick()
		if queuedMessage != "" {
			o.raiseToast(dedup.ToastInfo, queuedMessage)
		}
	}
}

func (o *Orchestrator) raiseToast(kind dedup.ToastKind, message string) {
	id, err := o.toasts.Raise(kind, message)
	if err != nil {
		o.logger.Warn("raise toast", "error", err)
		return
	}
	if id != 0 {
		o.bus.Publish(signals.Event{Kind: signals.KindToastRaised, Payload: id})
	}
}
