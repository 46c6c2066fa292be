package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CatalogScrapedEvent arrives when the scraping collaborator finishes
// pushing a competitor catalog
type CatalogScrapedEvent struct {
	TenantID     string `json:"tenantId"`
	CompetitorID string `json:"competitorId"`
}

// MatchFunc runs a matching pass for one competitor
type MatchFunc func(tenantID string, competitorID uuid.UUID) error

// CatalogSubscriber listens for scraped-catalog events and triggers a
// matching run for the affected competitor
type CatalogSubscriber struct {
	redis   *redis.Client
	handler MatchFunc
	logger  *logrus.Entry
	cancel  context.CancelFunc
	pubsub  *redis.PubSub
}

// NewCatalogSubscriber creates a subscriber on pricing.catalog.scraped
func NewCatalogSubscriber(redisClient *redis.Client, handler MatchFunc, logger *logrus.Logger) *CatalogSubscriber {
	return &CatalogSubscriber{
		redis:   redisClient,
		handler: handler,
		logger:  logger.WithField("component", "catalog-subscriber"),
	}
}

// Start begins listening for scraped-catalog events
func (s *CatalogSubscriber) Start(ctx context.Context) error {
	if s.redis == nil {
		s.logger.Warn("Redis unavailable, catalog subscriber not started")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.pubsub = s.redis.Subscribe(ctx, SubjectCatalogScraped)

	go func() {
		for msg := range s.pubsub.Channel() {
			s.handleMessage(msg.Payload)
		}
	}()

	s.logger.WithField("subject", SubjectCatalogScraped).Info("Catalog subscriber started")
	return nil
}

func (s *CatalogSubscriber) handleMessage(payload string) {
	var event CatalogScrapedEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		s.logger.WithError(err).Error("Invalid catalog scraped event")
		return
	}

	competitorID, err := uuid.Parse(event.CompetitorID)
	if err != nil {
		s.logger.WithField("competitor_id", event.CompetitorID).Error("Invalid competitor ID in event")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id":     event.TenantID,
		"competitor_id": event.CompetitorID,
	}).Info("Received catalog scraped event, running matches")

	if err := s.handler(event.TenantID, competitorID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id":     event.TenantID,
			"competitor_id": event.CompetitorID,
		}).Error("Matching run failed for scraped catalog")
	}
}

// Stop stops the subscriber
func (s *CatalogSubscriber) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	s.logger.Info("Catalog subscriber stopped")
}
