package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/bellapacxx/bingo-coach/models"
	"github.com/bellapacxx/bingo-coach/repository"
	"github.com/bellapacxx/bingo-coach/utils/apperrors"
	"github.com/bellapacxx/bingo-coach/utils/logger"
)

// RewardRequest is the caller-supplied part of a reward evaluation.
type RewardRequest struct {
	UserID    uint       `json:"user_id" validate:"required"`
	Event     string     `json:"event,omitempty" validate:"max=64"`
	Reason    string     `json:"reason,omitempty" validate:"max=255"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}

// RewardDecision is what the generation service answers.
type RewardDecision struct {
	Grant  bool   `json:"grant"`
	Type   string `json:"type" validate:"max=32"`
	Coins  int64  `json:"coins" validate:"gte=0"`
	Reason string `json:"reason" validate:"max=255"`
}

type RewardResult struct {
	Decision RewardDecision      `json:"decision"`
	Granted  bool                `json:"granted"`
	Entry    *models.Transaction `json:"ledger_entry,omitempty"`
	Fallback bool                `json:"fallback,omitempty"`
}

type rewardSnapshot struct {
	Type          string               `json:"type"`
	Request       RewardRequest        `json:"request"`
	Context       *PlayerContext       `json:"context"`
	RecentLedger  []models.Transaction `json:"recent_transactions"`
	RecentGames   []RecentGame         `json:"recent_games"`
	MaxRewardCoin int64                `json:"max_reward_coins"`
}

// RewardEngine asks the generation service whether to grant coins and books
// granted rewards on the ledger.
type RewardEngine struct {
	store    repository.Store
	contexts *ContextAggregator
	client   GenerationClient
	policy   Policy
	validate *validator.Validate
	log      *zap.SugaredLogger
}

func NewRewardEngine(store repository.Store, client GenerationClient, policy Policy) *RewardEngine {
	return &RewardEngine{
		store:    store,
		contexts: NewContextAggregator(store, policy),
		client:   client,
		policy:   policy,
		validate: validator.New(),
		log:      logger.Named(logger.Log, "reward"),
	}
}

// Evaluate never grants on a generation failure. A grant of zero coins is
// audited but leaves the ledger untouched.
func (e *RewardEngine) Evaluate(ctx context.Context, req RewardRequest) (*RewardResult, error) {
	req.Event = strings.TrimSpace(req.Event)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := e.validate.Struct(req); err != nil {
		return nil, apperrors.Validation("invalid reward request: %v", err)
	}
	if _, err := e.store.GetUser(ctx, req.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user %d not found", req.UserID)
		}
		return nil, apperrors.Store("load user", err)
	}

	snap, err := e.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	decision, err := await(ctx, e.policy.GenerationTimeout, func(ctx context.Context) (RewardDecision, error) {
		var out RewardDecision
		if err := e.client.Generate(ctx, rewardInstructions(e.policy), snap, &out); err != nil {
			return out, err
		}
		if err := e.validate.Struct(out); err != nil {
			return out, apperrors.Generation(fmt.Errorf("invalid reward decision: %w", err))
		}
		if out.Coins > e.policy.MaxRewardCoins {
			return out, apperrors.Generation(fmt.Errorf("reward of %d coins exceeds cap %d", out.Coins, e.policy.MaxRewardCoins))
		}
		return out, nil
	})
	generationDuration.WithLabelValues("reward").Observe(time.Since(start).Seconds())
	if err != nil {
		e.log.Warnf("[User %d] reward not granted: %v", req.UserID, err)
		rewardsTotal.WithLabelValues("failed").Inc()
		return &RewardResult{Decision: RewardDecision{Reason: "reward service unavailable"}, Fallback: true}, nil
	}

	res := &RewardResult{Decision: decision}
	err = e.store.Transaction(ctx, func(tx repository.Store) error {
		if decision.Grant && decision.Coins != 0 {
			entry := &models.Transaction{
				UserID: req.UserID,
				GameID: req.SessionID,
				Type:   models.RewardTransaction,
				Amount: decision.Coins,
				Reason: rewardReason(decision),
			}
			if err := tx.PostLedger(ctx, entry); err != nil {
				return err
			}
			res.Entry = entry
			res.Granted = true
		}
		b, err := json.Marshal(decision)
		if err != nil {
			return err
		}
		userID := req.UserID
		return tx.LogDecision(ctx, &models.Decision{
			Kind:         models.DecisionReward,
			UserID:       &userID,
			GameID:       req.SessionID,
			Trigger:      req.Event,
			Granted:      res.Granted,
			DecisionJSON: datatypes.JSON(b),
		})
	})
	if err != nil {
		return nil, apperrors.Store("book reward", err)
	}

	if res.Granted {
		rewardsTotal.WithLabelValues("granted").Inc()
		e.log.Infof("[User %d] granted %d coins: %s", req.UserID, decision.Coins, res.Entry.Reason)
	} else {
		rewardsTotal.WithLabelValues("declined").Inc()
	}
	return res, nil
}

func (e *RewardEngine) snapshot(ctx context.Context, req RewardRequest) (*rewardSnapshot, error) {
	pc, err := e.contexts.BuildContext(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	ledger, err := e.store.RecentLedger(ctx, req.UserID, e.policy.RewardLedger)
	if err != nil {
		return nil, apperrors.Store("load ledger", err)
	}
	games, err := e.store.RecentFinishedGames(ctx, req.UserID, e.policy.RewardGames)
	if err != nil {
		return nil, apperrors.Store("load recent games", err)
	}
	snap := &rewardSnapshot{
		Type:          "reward",
		Request:       req,
		Context:       pc,
		RecentLedger:  ledger,
		RecentGames:   make([]RecentGame, 0, len(games)),
		MaxRewardCoin: e.policy.MaxRewardCoins,
	}
	if snap.RecentLedger == nil {
		snap.RecentLedger = []models.Transaction{}
	}
	for _, g := range games {
		snap.RecentGames = append(snap.RecentGames, RecentGame{
			SessionID:     g.ID,
			Room:          g.Room,
			Result:        g.Outcome(),
			WinType:       g.WinType,
			NumbersCalled: g.NumbersCalled,
			CoinsWon:      g.CoinsWon,
			EndedAt:       g.EndedAt,
		})
	}
	return snap, nil
}

func rewardReason(d RewardDecision) string {
	reason := d.Reason
	if reason == "" {
		reason = "Reward"
	}
	if d.Type != "" {
		reason = d.Type + ": " + reason
	}
	if r := []rune(reason); len(r) > 255 {
		reason = string(r[:255])
	}
	return reason
}

func rewardInstructions(p Policy) string {
	return "You decide whether a bingo player should receive bonus coins right now. " +
		"You receive the request, the player context, their recent coin transactions and recent games. " +
		"Reward comebacks, loyalty and rough losing streaks; do not reward players who just won big or were rewarded moments ago. " +
		fmt.Sprintf("Grant at most %d coins. ", p.MaxRewardCoins) +
		"Respond with a single JSON object: {\"grant\": boolean, \"type\": string, \"coins\": integer, \"reason\": string}."
}
