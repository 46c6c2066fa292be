package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"pricing-service/internal/models"
)

// Pub/sub subjects emitted and consumed by this service
const (
	SubjectImportCompleted  = "pricing.import.completed"
	SubjectImportFailed     = "pricing.import.failed"
	SubjectMatchesCompleted = "pricing.matches.completed"
	SubjectCatalogScraped   = "pricing.catalog.scraped"
)

// Publisher emits pricing events over Redis pub/sub
type Publisher struct {
	redis  *redis.Client
	logger *logrus.Entry
}

// NewPublisher creates a pricing events publisher
func NewPublisher(redisClient *redis.Client, logger *logrus.Logger) *Publisher {
	return &Publisher{
		redis:  redisClient,
		logger: logger.WithField("component", "pricing-events"),
	}
}

// ImportEvent is the payload for import lifecycle events
type ImportEvent struct {
	JobID            string `json:"jobId"`
	TenantID         string `json:"tenantId"`
	Filename         string `json:"filename"`
	ProductsImported int    `json:"productsImported"`
	ProductsFailed   int    `json:"productsFailed"`
	Error            string `json:"error,omitempty"`
}

// MatchesEvent is the payload for a finished matching run
type MatchesEvent struct {
	TenantID     string  `json:"tenantId"`
	CompetitorID string  `json:"competitorId"`
	MatchesFound int     `json:"matchesFound"`
	AverageScore float64 `json:"averageScore"`
}

// ImportCompleted publishes a pricing.import.completed event
func (p *Publisher) ImportCompleted(job *models.ImportJob) {
	p.publish(SubjectImportCompleted, &ImportEvent{
		JobID:            job.ID.String(),
		TenantID:         job.TenantID,
		Filename:         job.Filename,
		ProductsImported: job.ProductsImported,
		ProductsFailed:   job.ProductsFailed,
	})
}

// ImportFailed publishes a pricing.import.failed event
func (p *Publisher) ImportFailed(job *models.ImportJob) {
	errMsg := ""
	if job.Error != nil {
		errMsg = *job.Error
	}
	p.publish(SubjectImportFailed, &ImportEvent{
		JobID:            job.ID.String(),
		TenantID:         job.TenantID,
		Filename:         job.Filename,
		ProductsImported: job.ProductsImported,
		ProductsFailed:   job.ProductsFailed,
		Error:            errMsg,
	})
}

// MatchesCompleted publishes a pricing.matches.completed event
func (p *Publisher) MatchesCompleted(tenantID, competitorID string, matchesFound int, averageScore float64) {
	p.publish(SubjectMatchesCompleted, &MatchesEvent{
		TenantID:     tenantID,
		CompetitorID: competitorID,
		MatchesFound: matchesFound,
		AverageScore: averageScore,
	})
}

// publish sends an event asynchronously to not block the main flow
func (p *Publisher) publish(subject string, payload interface{}) {
	if p.redis == nil {
		p.logger.WithField("subject", subject).Debug("Redis unavailable, event not published")
		return
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data, err := json.Marshal(payload)
		if err != nil {
			p.logger.WithField("subject", subject).WithError(err).Error("Failed to encode event")
			return
		}

		if err := p.redis.Publish(pubCtx, subject, data).Err(); err != nil {
			p.logger.WithFields(logrus.Fields{
				"subject": subject,
			}).WithError(err).Error("Failed to publish event")
		} else {
			p.logger.WithFields(logrus.Fields{
				"subject": subject,
			}).Info("Event published successfully")
		}
	}()
}
