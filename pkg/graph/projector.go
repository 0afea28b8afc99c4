package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Executor runs a write query
type Executor interface {
	Execute(ctx context.Context, cypher string, params map[string]any) error
}

const projectJobCypher = `
MERGE (j:CleansingJob {id: $job_id})
SET j.user_id = $user_id,
    j.migration_project_id = $migration_project_id,
    j.total_records = $total_records,
    j.duplicates_found = $duplicates_found,
    j.completed_at = $completed_at
WITH j
UNWIND $matches AS m
MERGE (s:Record {job_id: $job_id, side: 'source', record_id: m.source_key})
SET s.data = m.source_data
MERGE (t:Record {job_id: $job_id, side: 'target', record_id: m.target_key})
SET t.data = m.target_data
MERGE (j)-[:SCANNED]->(s)
MERGE (s)-[d:POSSIBLE_DUPLICATE {match_id: m.match_id}]->(t)
SET d.confidence_score = m.confidence_score,
    d.match_type = m.match_type,
    d.suggested_action = m.suggested_action,
    d.conflict_fields = m.conflict_fields
`

// Projector writes each completed job and its matches as a duplicate graph.
// Records are nodes, matches are POSSIBLE_DUPLICATE edges from source to target.
type Projector struct {
	executor Executor
	logger   ectologger.Logger
}

func NewProjector(executor Executor, logger ectologger.Logger) *Projector {
	return &Projector{
		executor: executor,
		logger:   logger,
	}
}

// JobCompleted projects the job into the graph
func (p *Projector) JobCompleted(ctx context.Context, job *models.CleansingJob, summary models.SummaryReport, matches []models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.JobCompleted")
	defer span.End()

	params, err := ProjectionParams(job, summary, matches)
	if err != nil {
		return err
	}

	if err := p.executor.Execute(ctx, projectJobCypher, params); err != nil {
		metrics.GraphProjectionsTotal.WithLabelValues("error").Inc()
		p.logger.WithContext(ctx).WithError(err).WithField("job_id", job.ID).Error("Failed to project cleansing job")
		return fmt.Errorf("failed to project cleansing job %s: %w", job.ID, err)
	}

	metrics.GraphProjectionsTotal.WithLabelValues("success").Inc()
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":  job.ID,
		"matches": len(matches),
	}).Debug("Projected cleansing job")

	return nil
}

// ProjectionParams flattens a job into Bolt-safe query parameters. Nested
// records are stored as JSON strings since graph properties must be scalars or lists.
func ProjectionParams(job *models.CleansingJob, summary models.SummaryReport, matches []models.MatchResult) (map[string]any, error) {
	rows := make([]any, 0, len(matches))
	for _, match := range matches {
		sourceData, err := encode(match.SourceData)
		if err != nil {
			return nil, err
		}
		targetData, err := encode(match.TargetData)
		if err != nil {
			return nil, err
		}

		// targets without an id are still distinct records, keyed by the match
		targetKey := "match-" + match.ID
		if match.TargetRecordID != nil {
			targetKey = *match.TargetRecordID
		}

		conflicts := make([]any, 0, len(match.ConflictFields))
		for _, field := range match.ConflictFields {
			conflicts = append(conflicts, field)
		}

		rows = append(rows, map[string]any{
			"match_id":         match.ID,
			"source_key":       match.SourceRecordID,
			"target_key":       targetKey,
			"source_data":      sourceData,
			"target_data":      targetData,
			"confidence_score": match.ConfidenceScore,
			"match_type":       string(match.MatchType),
			"suggested_action": string(match.SuggestedAction),
			"conflict_fields":  conflicts,
		})
	}

	var projectID any
	if job.MigrationProjectID != nil {
		projectID = *job.MigrationProjectID
	}
	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	return map[string]any{
		"job_id":               job.ID,
		"user_id":              job.UserID,
		"migration_project_id": projectID,
		"total_records":        int64(summary.TotalRecords),
		"duplicates_found":     int64(summary.DuplicatesFound),
		"completed_at":         completedAt,
		"matches":              rows,
	}, nil
}

func encode(record models.CandidateRecord) (string, error) {
	if record == nil {
		return "{}", nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return string(data), nil
}
