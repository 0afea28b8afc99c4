package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Oracle is a text-completion service asked to judge entity equivalence.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const semanticPrompt = `You are reconciling CRM records during a data migration.
Decide whether the two records below describe the same real-world entity.

<SOURCE RECORD>
%s
</SOURCE RECORD>

<TARGET RECORD>
%s
</TARGET RECORD>

Respond with a single JSON object and nothing else, using exactly these keys:
{
  "isMatch": true or false,
  "confidence": a number between 0 and 1,
  "reasoning": "a short explanation",
  "conflictFields": ["names of fields whose values disagree"]
}`

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Verdict is the oracle's judgement of a pair
type Verdict struct {
	IsMatch        bool
	Confidence     float64
	Reasoning      string
	ConflictFields []string
}

// SemanticMatcher asks an Oracle to judge a pair. Oracle and parse failures are
// logged and produce no match for that pair only.
type SemanticMatcher struct {
	oracle  Oracle
	logger  ectologger.Logger
	accept  float64
	timeout time.Duration
}

// NewSemanticMatcher creates a semantic matcher. A zero timeout leaves the
// oracle call bounded only by the oracle client.
func NewSemanticMatcher(oracle Oracle, logger ectologger.Logger, timeout time.Duration) *SemanticMatcher {
	return &SemanticMatcher{
		oracle:  oracle,
		logger:  logger,
		accept:  0.75,
		timeout: timeout,
	}
}

func (m *SemanticMatcher) Name() models.MatchType {
	return models.MatchTypeSemantic
}

func (m *SemanticMatcher) Match(ctx context.Context, pair Pair) *models.MatchResult {
	ctx, span := tracing.StartSpan(ctx, "matching.SemanticMatcher.Match")
	defer span.End()

	log := m.logger.WithContext(ctx).WithFields(map[string]any{
		"source_record_id": pair.SourceID,
	})

	prompt, err := BuildSemanticPrompt(pair.Source, pair.Target)
	if err != nil {
		log.WithError(err).Warn("Failed to build semantic prompt")
		metrics.RecordOracleFailure("prompt")
		return nil
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	response, err := m.oracle.Complete(ctx, prompt)
	if err != nil {
		log.WithError(err).Warn("Semantic oracle call failed, treating pair as no match")
		metrics.RecordOracleFailure("oracle")
		return nil
	}

	verdict, err := ParseVerdict(response)
	if err != nil {
		log.WithError(err).Warn("Semantic oracle returned an invalid verdict, treating pair as no match")
		metrics.RecordOracleFailure("parse")
		return nil
	}

	score := 0.0
	if verdict.IsMatch {
		score = verdict.Confidence
	}
	if score < m.accept {
		return nil
	}

	return newResult(pair, models.MatchTypeSemantic, score, verdict.ConflictFields, SuggestAction(score, len(verdict.ConflictFields)), models.ReconciliationStrategy{
		ConflictingFields: verdict.ConflictFields,
		SimilarityScore:   &score,
		Reasoning:         verdict.Reasoning,
	})
}

// BuildSemanticPrompt embeds both records in the oracle prompt.
func BuildSemanticPrompt(source, target models.CandidateRecord) (string, error) {
	s, err := json.Marshal(source)
	if err != nil {
		return "", fmt.Errorf("failed to marshal source record: %w", err)
	}
	t, err := json.Marshal(target)
	if err != nil {
		return "", fmt.Errorf("failed to marshal target record: %w", err)
	}
	return fmt.Sprintf(semanticPrompt, s, t), nil
}

// ParseVerdict extracts the JSON object from an oracle response. The object must
// carry exactly isMatch, confidence, reasoning and conflictFields.
func ParseVerdict(response string) (*Verdict, error) {
	raw := jsonObject.FindString(response)
	if raw == "" {
		return nil, errors.New("no JSON object in oracle response")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse oracle response: %w", err)
	}

	required := []string{"isMatch", "confidence", "reasoning", "conflictFields"}
	if len(fields) != len(required) {
		return nil, fmt.Errorf("oracle response has %d keys, expected %d", len(fields), len(required))
	}

	verdict := &Verdict{}
	targets := map[string]any{
		"isMatch":        &verdict.IsMatch,
		"confidence":     &verdict.Confidence,
		"reasoning":      &verdict.Reasoning,
		"conflictFields": &verdict.ConflictFields,
	}
	for _, key := range required {
		value, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("oracle response missing %q", key)
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return nil, fmt.Errorf("oracle response has null %q", key)
		}
		if err := json.Unmarshal(value, targets[key]); err != nil {
			return nil, fmt.Errorf("oracle response has invalid %q: %w", key, err)
		}
	}

	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return nil, fmt.Errorf("oracle confidence %v outside [0,1]", verdict.Confidence)
	}
	if verdict.ConflictFields == nil {
		verdict.ConflictFields = []string{}
	}

	return verdict, nil
}
