package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	EventJobCompleted = "cleansing.job.completed"
	EventMatchFound   = "cleansing.match.found"

	schemaVersion = "1.0"
)

// MessageWriter is the subset of *kafka.Writer the producer needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes cleansing job events
type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
	// publishMatches also emits one event per persisted match
	publishMatches bool
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers        []string
	Topic          string
	BatchSize      int
	BatchTimeout   time.Duration
	RequiredAcks   int
	Compression    string
	PublishMatches bool
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, cfg.PublishMatches, logger)
}

// NewProducerWithWriter creates a producer over an existing writer
func NewProducerWithWriter(writer MessageWriter, topic string, publishMatches bool, logger ectologger.Logger) *Producer {
	return &Producer{
		writer:         writer,
		logger:         logger,
		topic:          topic,
		publishMatches: publishMatches,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// JobEvent is published when a cleansing job completes
type JobEvent struct {
	EventType          string               `json:"event_type"`
	JobID              string               `json:"job_id"`
	UserID             string               `json:"user_id"`
	MigrationProjectID *string              `json:"migration_project_id,omitempty"`
	Status             models.JobStatus     `json:"status"`
	Summary            models.SummaryReport `json:"summary"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	Timestamp          time.Time            `json:"timestamp"`
}

// MatchEvent describes one persisted match
type MatchEvent struct {
	EventType       string                 `json:"event_type"`
	JobID           string                 `json:"job_id"`
	MatchID         string                 `json:"match_id"`
	SourceRecordID  string                 `json:"source_record_id"`
	TargetRecordID  *string                `json:"target_record_id,omitempty"`
	ConfidenceScore float64                `json:"confidence_score"`
	MatchType       models.MatchType       `json:"match_type"`
	SuggestedAction models.SuggestedAction `json:"suggested_action"`
	ConflictFields  []string               `json:"conflict_fields"`
	Timestamp       time.Time              `json:"timestamp"`
}

// JobCompleted publishes the job event and, when enabled, its match events
func (p *Producer) JobCompleted(ctx context.Context, job *models.CleansingJob, summary models.SummaryReport, matches []models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.JobCompleted")
	defer span.End()

	now := time.Now().UTC()
	messages := make([]kafka.Message, 0, 1+len(matches))

	jobMsg, err := p.message(job.ID, EventJobCompleted, job.UserID, JobEvent{
		EventType:          EventJobCompleted,
		JobID:              job.ID,
		UserID:             job.UserID,
		MigrationProjectID: job.MigrationProjectID,
		Status:             job.Status,
		Summary:            summary,
		CompletedAt:        job.CompletedAt,
		Timestamp:          now,
	})
	if err != nil {
		return err
	}
	messages = append(messages, jobMsg)

	if p.publishMatches {
		for _, match := range matches {
			msg, err := p.message(job.ID, EventMatchFound, job.UserID, MatchEvent{
				EventType:       EventMatchFound,
				JobID:           job.ID,
				MatchID:         match.ID,
				SourceRecordID:  match.SourceRecordID,
				TargetRecordID:  match.TargetRecordID,
				ConfidenceScore: match.ConfidenceScore,
				MatchType:       match.MatchType,
				SuggestedAction: match.SuggestedAction,
				ConflictFields:  match.ConflictFields,
				Timestamp:       now,
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
	}

	err = p.writer.WriteMessages(ctx, messages...)
	metrics.RecordPublish(p.topic, err, len(messages))
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job_id":     job.ID,
			"batch_size": len(messages),
		}).Error("Failed to publish cleansing job events")
		return fmt.Errorf("failed to publish cleansing job events: %w", err)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":     job.ID,
		"batch_size": len(messages),
	}).Debug("Published cleansing job events")

	return nil
}

// message keys every event by job id so a job's events stay ordered on one partition
func (p *Producer) message(jobID, eventType, userID string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	return kafka.Message{
		Key:   []byte(jobID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "user_id", Value: []byte(userID)},
			{Key: "schema_version", Value: []byte(schemaVersion)},
		},
	}, nil
}
