package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// completionSweepBatch caps how many recovered showings one sweep run enqueues.
const completionSweepBatch = 200

// RunCompletionSweep re-enqueues completion webhooks for showings that
// reached completed but whose notice was never claimed (crash between the
// transition and the enqueue). Claiming here keeps the at-most-once property:
// a showing the API already claimed is invisible to the sweep.
func (p *TaskProcessor) RunCompletionSweep(ctx context.Context) {
	showings, err := p.showingService.ListUnnotifiedCompleted(ctx, completionSweepBatch)
	if err != nil {
		log.Printf("CRITICAL: completion sweep query failed: %v", err)
		return
	}
	if len(showings) == 0 {
		return
	}

	recovered := 0
	for i := range showings {
		claimed, err := p.showingService.ClaimCompletionNotice(ctx, showings[i].ID)
		if err != nil {
			log.Printf("WARN: completion sweep could not claim showing %s: %v", showings[i].ID, err)
			continue
		}
		if !claimed {
			continue
		}
		if err := p.enqueueTourCompleted(ctx, showings[i].ID); err != nil {
			log.Printf("CRITICAL: completion sweep enqueue failed for showing %s: %v", showings[i].ID, err)
			if relErr := p.showingService.ReleaseCompletionNotice(ctx, showings[i].ID); relErr != nil {
				log.Printf("CRITICAL: failed to release completion claim for showing %s: %v", showings[i].ID, relErr)
			}
			continue
		}
		recovered++
	}
	log.Printf("Completion sweep recovered %d/%d unnotified showings", recovered, len(showings))
}

func (p *TaskProcessor) enqueueTourCompleted(ctx context.Context, showingID string) error {
	payload, err := json.Marshal(TourCompletedPayload{ShowingRequestID: showingID})
	if err != nil {
		return fmt.Errorf("failed to marshal tour completed payload: %w", err)
	}
	task := asynq.NewTask(TypeTourCompleted, payload, asynq.Queue("critical"))
	_, err = p.taskClient.EnqueueContext(ctx, task)
	return err
}

// RunConfirmationReminderSweep emails buyers whose showing is still waiting
// for an agent past its estimated confirmation date. Best-effort: a failed
// enqueue for one buyer never stops the rest.
func (p *TaskProcessor) RunConfirmationReminderSweep(ctx context.Context, findBuyerEmail func(ctx context.Context, userID string) (string, error)) {
	showings, err := p.showingService.ListAwaitingConfirmationSince(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("CRITICAL: confirmation reminder sweep query failed: %v", err)
		return
	}

	sent := 0
	for i := range showings {
		address, err := findBuyerEmail(ctx, showings[i].UserID)
		if err != nil || address == "" {
			log.Printf("WARN: no email for buyer %s on showing %s: %v", showings[i].UserID, showings[i].ID, err)
			continue
		}

		payload, err := json.Marshal(EmailTaskPayload{
			To:      address,
			Subject: fmt.Sprintf("%s: your tour request for %s", p.cfg.AppName, showings[i].PropertyAddress),
			Body: fmt.Sprintf("We're still matching an agent for your tour of %s. "+
				"We'll confirm as soon as an agent accepts your request.", showings[i].PropertyAddress),
		})
		if err != nil {
			log.Printf("WARN: failed to marshal reminder email for showing %s: %v", showings[i].ID, err)
			continue
		}
		if _, err := p.taskClient.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, payload, asynq.Queue("low"))); err != nil {
			log.Printf("WARN: failed to enqueue reminder email for showing %s: %v", showings[i].ID, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		log.Printf("Confirmation reminder sweep enqueued %d reminder emails", sent)
	}
}
