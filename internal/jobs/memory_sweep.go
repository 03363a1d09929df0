package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/services"
)

// sweepInterval is how often the sweep looks for ended consultations whose
// memory consolidation never completed.
const sweepInterval = 15 * time.Minute

// sweepBatchSize bounds how many conversations one sweep run consolidates.
const sweepBatchSize = 50

// MemorySweep periodically retries memory consolidation for ended
// consultations that the inline consolidation missed, for example after a
// crash or a model outage.
type MemorySweep struct {
	conversations *services.ConversationService
	memory        *services.MemoryService
	scheduler     gocron.Scheduler
}

// NewMemorySweep creates the sweep with its own UTC scheduler.
func NewMemorySweep(conversations *services.ConversationService, memory *services.MemoryService) (*MemorySweep, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &MemorySweep{
		conversations: conversations,
		memory:        memory,
		scheduler:     scheduler,
	}, nil
}

// Start registers the sweep job and begins running it.
func (s *MemorySweep) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(s.run),
		gocron.WithName("memory-sweep"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule memory sweep: %w", err)
	}

	s.scheduler.Start()
	log.Printf("✅ [SCHEDULER] Memory sweep running every %v", sweepInterval)
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *MemorySweep) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *MemorySweep) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	conversations, err := s.conversations.FindUnconsolidated(ctx, sweepBatchSize)
	if err != nil {
		log.Printf("❌ [SCHEDULER] Memory sweep query failed: %v", err)
		return
	}
	if len(conversations) == 0 {
		return
	}

	log.Printf("🧠 [SCHEDULER] Memory sweep consolidating %d conversations", len(conversations))
	for i := range conversations {
		conversation := &conversations[i]
		id := conversation.ID.Hex()

		if err := s.memory.Consolidate(ctx, conversation); err != nil {
			log.Printf("⚠️ [SCHEDULER] Consolidation failed for %s, will retry next sweep: %v", id, err)
			continue
		}
		if err := s.conversations.MarkConsolidated(ctx, id); err != nil {
			log.Printf("⚠️ [SCHEDULER] Failed to mark %s consolidated: %v", id, err)
		}
	}
}
