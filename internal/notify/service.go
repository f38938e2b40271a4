// Package notify implements the notification fan-out core: deduplicated
// single-recipient sends, capped site-wide broadcasts, and @mention
// resolution. All entry points are best-effort: a failed notification is
// logged and swallowed, never surfaced to the action that triggered it.
package notify

import (
	"context"
	"time"

	"github.com/treehole/backend/internal/cache"
	"github.com/treehole/backend/internal/directory"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/metrics"
	"github.com/treehole/backend/internal/models"
	"go.uber.org/zap"
)

const (
	// dedupWindow suppresses identical (recipient, kind, body, relatedID)
	// tuples created within this interval. The window tolerates
	// near-simultaneous duplicate triggers (double submits) without
	// suppressing genuinely distinct events outside it.
	dedupWindow = 5 * time.Minute

	// broadcastLimit caps durable broadcast fan-out per event. Selection
	// is the first N directory identities by creation order.
	broadcastLimit = 1000

	// dispatchTimeout bounds detached fan-out tasks.
	dispatchTimeout = 30 * time.Second
)

// Pusher is the real-time delivery channel the service pushes through.
// Implemented by the websocket handler; nil disables real-time delivery.
type Pusher interface {
	PushNotification(recipientID string, n *models.Notification)
	PushBroadcast(ev *models.BroadcastEvent)
}

// Service is the fan-out orchestrator.
type Service struct {
	store  Store
	dir    directory.Lookup
	pusher Pusher
}

// NewService creates the orchestrator. pusher may be nil.
func NewService(store Store, dir directory.Lookup, pusher Pusher) *Service {
	return &Service{store: store, dir: dir, pusher: pusher}
}

// SendParams describes one notification to a single recipient.
type SendParams struct {
	RecipientID string
	Kind        models.NotificationKind
	Body        string
	RelatedID   string
	SenderID    string
	SenderName  string
	Detail      map[string]any
}

// BroadcastParams describes a site-wide event.
type BroadcastParams struct {
	Kind               models.NotificationKind
	Body               string
	RelatedID          string
	SenderID           string
	SenderName         string
	Detail             map[string]any
	ExcludeRecipientID string
}

// Send persists and delivers one notification. It returns the persisted
// record, or nil when the send was a no-op (missing recipient, duplicate
// within the dedup window) or failed. Failures never propagate: the
// triggering user action must succeed even when notifying does not.
//
// The dedup key deliberately excludes the sender: two different actors
// producing the same tuple within the window collapse to one record. This
// mirrors the long-standing production behavior and is flagged in
// DESIGN.md for product review rather than changed here.
func (s *Service) Send(ctx context.Context, p SendParams) *models.Notification {
	if p.RecipientID == "" {
		return nil
	}
	if !models.ValidKind(p.Kind) {
		logger.Log.Warn("Dropping notification with unknown kind",
			zap.String("kind", string(p.Kind)))
		return nil
	}

	since := time.Now().UTC().Add(-dedupWindow)
	duplicate, err := s.store.Exists(ctx, p.RecipientID, p.Kind, p.Body, p.RelatedID, since)
	if err != nil {
		logger.Log.Error("Notification dedup check failed",
			logger.WithUserID(p.RecipientID), zap.Error(err))
		metrics.Get().NotificationsFailed.WithLabelValues("dedup").Inc()
		return nil
	}
	if duplicate {
		logger.Log.Debug("Duplicate notification filtered",
			logger.WithUserID(p.RecipientID),
			zap.String("kind", string(p.Kind)))
		metrics.Get().NotificationsDeduped.WithLabelValues(string(p.Kind)).Inc()
		return nil
	}

	record := &models.Notification{
		RecipientID: p.RecipientID,
		Kind:        p.Kind,
		Body:        p.Body,
		RelatedID:   p.RelatedID,
		SenderID:    p.SenderID,
		SenderName:  p.SenderName,
		Detail:      p.Detail,
		Read:        false,
	}

	persisted, err := s.store.InsertOne(ctx, record)
	if err != nil {
		logger.Log.Error("Failed to persist notification",
			logger.WithUserID(p.RecipientID), zap.Error(err))
		metrics.Get().NotificationsFailed.WithLabelValues("persist").Inc()
		return nil
	}

	if rc := cache.Get(); rc != nil {
		rc.InvalidateUnreadCount(ctx, p.RecipientID)
	}

	if s.pusher != nil {
		s.pusher.PushNotification(p.RecipientID, persisted)
		metrics.Get().WSMessagesDelivered.Inc()
	}

	metrics.Get().NotificationsSent.WithLabelValues(string(p.Kind)).Inc()
	return persisted
}

// Broadcast emits a site-wide event. The real-time push goes to every
// connected client unconditionally (clients self-filter on the excluded
// recipient); the durable fan-out inserts one record per selected
// directory identity, capped at broadcastLimit and excluding the actor.
// Broadcast inserts are not deduplicated; duplicate-call protection
// belongs at the call site. A durable fan-out failure does not undo the
// real-time push and does not propagate.
func (s *Service) Broadcast(ctx context.Context, p BroadcastParams) {
	if !models.ValidKind(p.Kind) {
		logger.Log.Warn("Dropping broadcast with unknown kind",
			zap.String("kind", string(p.Kind)))
		return
	}

	if s.pusher != nil {
		s.pusher.PushBroadcast(&models.BroadcastEvent{
			Kind:               p.Kind,
			Body:               p.Body,
			RelatedID:          p.RelatedID,
			SenderID:           p.SenderID,
			SenderName:         p.SenderName,
			Detail:             p.Detail,
			ExcludeRecipientID: p.ExcludeRecipientID,
		})
	}

	recipients, err := s.dir.ListUpTo(broadcastLimit, p.ExcludeRecipientID)
	if err != nil {
		logger.Log.Error("Broadcast recipient selection failed", zap.Error(err))
		metrics.Get().NotificationsFailed.WithLabelValues("broadcast_select").Inc()
		return
	}
	if len(recipients) == 0 {
		return
	}

	batch := make([]*models.Notification, len(recipients))
	for i, r := range recipients {
		batch[i] = &models.Notification{
			RecipientID: r.ID,
			Kind:        p.Kind,
			Body:        p.Body,
			RelatedID:   p.RelatedID,
			SenderID:    p.SenderID,
			SenderName:  p.SenderName,
			Detail:      p.Detail,
			Read:        false,
		}
	}

	if err := s.store.InsertMany(ctx, batch); err != nil {
		logger.Log.Error("Broadcast fan-out insert failed",
			zap.Int("recipients", len(batch)), zap.Error(err))
		metrics.Get().NotificationsFailed.WithLabelValues("broadcast_insert").Inc()
		return
	}

	// Cached badge counts for the batch converge via their TTL.
	metrics.Get().BroadcastInsertsTotal.Add(float64(len(batch)))
	logger.Log.Info("Broadcast fanned out",
		zap.String("kind", string(p.Kind)),
		zap.Int("recipients", len(batch)))
}

// HandleMentions extracts @name candidates from text, resolves each
// against the directory, and sends a mention notification per resolved
// identity, skipping self-mentions. One candidate's failure never aborts
// the rest.
func (s *Service) HandleMentions(ctx context.Context, text, relatedID, senderID, senderName string, contextKind models.NotificationKind) {
	if text == "" {
		return
	}

	for _, candidate := range ExtractMentions(text) {
		ident, err := s.dir.FindByName(candidate)
		if err != nil {
			logger.Log.Error("Mention lookup failed",
				zap.String("candidate", candidate), zap.Error(err))
			continue
		}
		if ident == nil {
			metrics.Get().MentionsUnresolvedTotal.Inc()
			continue
		}
		if ident.ID == senderID {
			continue
		}

		metrics.Get().MentionsResolvedTotal.Inc()
		s.Send(ctx, SendParams{
			RecipientID: ident.ID,
			Kind:        models.KindMention,
			Body:        mentionBody(senderName, contextKind),
			RelatedID:   relatedID,
			SenderID:    senderID,
			SenderName:  senderName,
			Detail:      map[string]any{"mentionedIn": mentionExcerpt(text)},
		})
	}
}

// DispatchSend runs Send on a detached task so request handlers return
// immediately; failures are observable only in logs and metrics.
func (s *Service) DispatchSend(p SendParams) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		s.Send(ctx, p)
	}()
}

// DispatchBroadcast runs Broadcast on a detached task.
func (s *Service) DispatchBroadcast(p BroadcastParams) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		s.Broadcast(ctx, p)
	}()
}

// DispatchMentions runs HandleMentions on a detached task.
func (s *Service) DispatchMentions(text, relatedID, senderID, senderName string, contextKind models.NotificationKind) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		s.HandleMentions(ctx, text, relatedID, senderID, senderName, contextKind)
	}()
}
