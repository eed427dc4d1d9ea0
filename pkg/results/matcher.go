package results

import (
	"go.uber.org/zap"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/registry"
)

// Match pairs a job item with its retrieved content.
type Match struct {
	Item    batch.JobItem
	Content string
}

// Outcome is the result of matching a job's records against its registry.
//
// Matches are in registry order regardless of response ordering. Skipped
// items had no decodable result; partial success is expected and must not
// block committing the items that did match.
type Outcome struct {
	Matches []Match
	Skipped []batch.JobItem

	// DroppedTokens counts result records whose correlation token could
	// not be decoded to a known stable index. Dropping is fail-closed:
	// an ambiguous token is never associated with any item.
	DroppedTokens int
}

// MatchResults re-associates result records with registry items by stable
// index.
//
// Index-based matching exists because signature- or content-based matching
// is unreliable when many near-identical source files are processed
// together. A token that fails to decode, decodes out of range, or repeats
// an already-claimed index is logged and dropped.
func MatchResults(reg *registry.Registry, records []batch.ResultRecord, logger *zap.Logger) *Outcome {
	if logger == nil {
		logger = zap.NewNop()
	}

	byIndex := make(map[uint]string, len(records))
	outcome := &Outcome{}

	for _, rec := range records {
		idx, err := batch.DecodeToken(rec.CorrelationToken)
		if err != nil {
			logger.Warn("Dropping result with undecodable token",
				zap.String("job_id", reg.JobID),
				zap.String("token", rec.CorrelationToken),
				zap.Error(err))
			outcome.DroppedTokens++
			continue
		}
		if reg.ItemByIndex(idx) == nil {
			logger.Warn("Dropping result with unknown stable index",
				zap.String("job_id", reg.JobID),
				zap.String("token", rec.CorrelationToken),
				zap.Uint("stable_index", idx))
			outcome.DroppedTokens++
			continue
		}
		if _, dup := byIndex[idx]; dup {
			logger.Warn("Dropping duplicate result for stable index",
				zap.String("job_id", reg.JobID),
				zap.Uint("stable_index", idx))
			outcome.DroppedTokens++
			continue
		}
		byIndex[idx] = rec.Content
	}

	for _, item := range reg.Items {
		content, ok := byIndex[item.StableIndex]
		if !ok {
			outcome.Skipped = append(outcome.Skipped, item)
			continue
		}
		outcome.Matches = append(outcome.Matches, Match{Item: item, Content: content})
	}

	return outcome
}
