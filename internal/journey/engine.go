package journey

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "github.com/jonathanmorav/unified-dashboard/internal/domain/journey"
	"github.com/jonathanmorav/unified-dashboard/pkg/snowflake"
)

// Engine advances journey instances as matching events arrive and
// detects instances that stopped moving.
type Engine struct {
	repo   domain.Repository
	ids    *snowflake.Node
	logger *zap.Logger
}

func NewEngine(repo domain.Repository, ids *snowflake.Node, logger *zap.Logger) *Engine {
	return &Engine{
		repo:   repo,
		ids:    ids,
		logger: logger.Named("journey.engine"),
	}
}

// OnEvent finds or creates the instance for every definition the topic
// matches and advances it. Topics no definition claims are ignored;
// journeys are opt-in per topic.
func (e *Engine) OnEvent(ctx context.Context, resourceType, resourceID, topic string, ts time.Time, eventID string) error {
	if resourceID == "" {
		return nil
	}

	for _, def := range domain.DefinitionsForTopic(topic) {
		if def.ResourceType != resourceType {
			continue
		}
		if err := e.advance(ctx, def, resourceID, topic, ts, eventID); err != nil {
			return fmt.Errorf("advance journey %q for %s/%s: %w", def.Name, resourceType, resourceID, err)
		}
	}
	return nil
}

func (e *Engine) advance(ctx context.Context, def domain.Definition, resourceID, topic string, ts time.Time, eventID string) error {
	candidate := domain.NewInstance(def, resourceID, ts)
	candidate.ID = e.ids.GenerateID()

	inst, created, err := e.repo.FindOrCreate(ctx, candidate)
	if err != nil {
		return err
	}
	if created {
		e.logger.Info("journey_started",
			zap.String("definition", def.Name),
			zap.String("resource_id", resourceID),
		)
	}

	// Terminal states never re-open.
	if inst.Status.Terminal() {
		return nil
	}

	inst.Revive()

	recorded := def.HasStep(topic) && inst.RecordStep(def, topic, ts)
	_, isTerminal := def.Terminal[topic]

	if recorded || isTerminal {
		// Terminal triggers outside the step list still land in the
		// step history; the audit trail records every advance.
		seq := len(inst.CompletedSteps)
		if !recorded {
			inst.LastEventAt = ts
			seq++
		}
		step := &domain.Step{
			ID:         e.ids.GenerateID(),
			InstanceID: inst.ID,
			Sequence:   seq,
			Name:       topic,
			EventID:    eventID,
			OccurredAt: ts,
		}
		if err := e.repo.AppendStep(ctx, step); err != nil {
			return fmt.Errorf("append step: %w", err)
		}
	} else {
		inst.LastEventAt = ts
	}

	if final, ok := def.Terminal[topic]; ok {
		inst.Finish(final, ts)
		e.logger.Info("journey_finished",
			zap.String("definition", def.Name),
			zap.String("resource_id", resourceID),
			zap.String("status", string(inst.Status)),
		)
	}

	return e.repo.Save(ctx, inst)
}

// SweepStuck transitions active instances idle past the threshold to
// stuck. Step history is not mutated. Returns the number flagged.
func (e *Engine) SweepStuck(ctx context.Context, threshold time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	candidates, err := e.repo.ListStuckCandidates(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, inst := range candidates {
		inst.MarkStuck()
		if err := e.repo.Save(ctx, inst); err != nil {
			e.logger.Warn("journey_mark_stuck_failed",
				zap.Error(err),
				zap.Int64("instance_id", inst.ID),
			)
			continue
		}
		flagged++
		e.logger.Info("journey_stuck",
			zap.String("definition", inst.DefinitionName),
			zap.String("resource_id", inst.ResourceID),
			zap.Time("last_event_at", inst.LastEventAt),
		)
	}

	return flagged, nil
}
