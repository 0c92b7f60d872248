package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
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

// Recommendation is a suggested next step. The model may send a bare string,
// which lands in Action.
type Recommendation struct {
	Action string `json:"action,omitempty"`
	RoomID string `json:"room_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (r *Recommendation) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.Action = s
		return nil
	}
	type plain Recommendation
	return json.Unmarshal(b, (*plain)(r))
}

// RewardHint is the director's advisory reward. It is never applied; only the
// reward engine moves coins.
type RewardHint struct {
	Type   string `json:"type,omitempty"`
	Coins  int64  `json:"coins,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (r *RewardHint) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.Reason = s
		return nil
	}
	type plain RewardHint
	return json.Unmarshal(b, (*plain)(r))
}

// Remark is one generated coaching message.
type Remark struct {
	BotMessage         string          `json:"bot_message" validate:"required,max=500"`
	EmotionalState     string          `json:"emotional_state,omitempty" validate:"max=64"`
	ShouldSuggestBreak bool            `json:"should_suggest_break"`
	RecommendedAction  *Recommendation `json:"recommended_action,omitempty"`
	Reward             *RewardHint     `json:"reward,omitempty"`
	Fallback           bool            `json:"fallback,omitempty"`
}

// Greeting is the lobby welcome.
type Greeting struct {
	BotMessage        string          `json:"bot_message" validate:"required,max=500"`
	RecommendedAction *Recommendation `json:"recommended_action"`
	Fallback          bool            `json:"fallback,omitempty"`
}

// RemarkMessage is what subscribers of a session receive.
type RemarkMessage struct {
	Type          string    `json:"type"`
	SessionID     uuid.UUID `json:"session_id"`
	Trigger       Trigger   `json:"trigger"`
	SessionStatus string    `json:"session_status"`
	Remark        Remark    `json:"remark"`
}

// RemarkSink delivers remarks produced in the background.
type RemarkSink interface {
	Publish(sessionID uuid.UUID, msg RemarkMessage)
}

type directorRequest struct {
	Type             string         `json:"type"`
	Trigger          Trigger        `json:"trigger,omitempty"`
	PlayerMessage    string         `json:"player_message,omitempty"`
	Context          *PlayerContext `json:"context"`
	AdditionalData   *Extras        `json:"additional_data,omitempty"`
	AllowedPhrasings []string       `json:"allowed_phrasings,omitempty"`
}

type greetingRequest struct {
	Type        string           `json:"type"`
	Profile     UserProfile      `json:"user_profile"`
	LastGame    *RecentGame      `json:"last_game"`
	RoomHistory []RoomPreference `json:"room_history"`
	Streak      Streak           `json:"current_streak"`
}

// Director decides when to speak and what to say.
type Director struct {
	store        repository.Store
	contexts     *ContextAggregator
	client       GenerationClient
	sink         RemarkSink
	policy       Policy
	validate     *validator.Validate
	instructions string
	greeting     string
	log          *zap.SugaredLogger
	wg           sync.WaitGroup
}

type DirectorOption func(*Director)

func WithRemarkSink(s RemarkSink) DirectorOption {
	return func(d *Director) { d.sink = s }
}

func WithDirectorLogger(l *zap.SugaredLogger) DirectorOption {
	return func(d *Director) { d.log = l }
}

func NewDirector(store repository.Store, client GenerationClient, policy Policy, opts ...DirectorOption) *Director {
	d := &Director{
		store:        store,
		contexts:     NewContextAggregator(store, policy),
		client:       client,
		policy:       policy,
		validate:     validator.New(),
		instructions: buildInstructions(policy),
		greeting:     buildGreetingInstructions(),
		log:          logger.Named(logger.Log, "director"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ShouldFire applies the trigger throttle to ev.
func (d *Director) ShouldFire(ev Event) bool {
	ev.Extras = ev.Extras.ForTrigger(ev.Trigger)
	return d.policy.ShouldFire(ev)
}

// Decide produces a remark for ev. fired is false when the throttle
// suppressed the event. Generation problems yield the fallback remark.
func (d *Director) Decide(ctx context.Context, ev Event) (remark *Remark, fired bool, err error) {
	if !ev.Trigger.Valid() {
		return nil, false, apperrors.Validation("unknown trigger %q", ev.Trigger)
	}
	ev.Extras = ev.Extras.ForTrigger(ev.Trigger)
	if !d.policy.ShouldFire(ev) {
		directorCallsTotal.WithLabelValues(string(ev.Trigger), "skipped").Inc()
		return nil, false, nil
	}

	var sessionID *uuid.UUID
	if ev.SessionID != uuid.Nil {
		sessionID = &ev.SessionID
	}
	pc, err := d.contexts.BuildContext(ctx, ev.UserID, sessionID)
	if err != nil {
		return nil, true, err
	}

	extras := ev.Extras
	req := directorRequest{
		Type:             "decision",
		Trigger:          ev.Trigger,
		Context:          pc,
		AdditionalData:   &extras,
		AllowedPhrasings: d.policy.PhrasingsFor(extras.MarkedCount, extras.NumbersCalled),
	}
	remark = d.remark(ctx, "decision", req)
	directorCallsTotal.WithLabelValues(string(ev.Trigger), outcomeOf(remark.Fallback)).Inc()
	if !remark.Fallback {
		d.audit(ctx, models.DecisionDirector, ev.UserID, sessionID, string(ev.Trigger), remark)
	}
	return remark, true, nil
}

// Notify runs Decide in the background and publishes the result. It never
// blocks the caller.
func (d *Director) Notify(ev Event) {
	if !d.ShouldFire(ev) {
		directorCallsTotal.WithLabelValues(string(ev.Trigger), "skipped").Inc()
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.policy.GenerationTimeout+5*time.Second)
		defer cancel()

		remark, fired, err := d.Decide(ctx, ev)
		if err != nil {
			d.log.Warnf("[Game %s] %s remark fell back: %v", ev.SessionID, ev.Trigger, err)
			directorCallsTotal.WithLabelValues(string(ev.Trigger), "fallback").Inc()
			remark, fired = d.fallback(), true
		}
		if !fired || d.sink == nil {
			return
		}
		status := models.StatusOngoing
		if g, err := d.store.GetGame(ctx, ev.SessionID); err == nil {
			status = g.Outcome()
		}
		d.sink.Publish(ev.SessionID, RemarkMessage{
			Type:          "remark",
			SessionID:     ev.SessionID,
			Trigger:       ev.Trigger,
			SessionStatus: status,
			Remark:        *remark,
		})
	}()
}

// Wait blocks until background remarks have finished.
func (d *Director) Wait() {
	d.wg.Wait()
}

// Chat answers a free-form player message.
func (d *Director) Chat(ctx context.Context, userID uint, sessionID *uuid.UUID, message string) (*Remark, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.Validation("message is required")
	}
	if len(message) > d.policy.MaxChatLength {
		return nil, apperrors.Validation("message longer than %d characters", d.policy.MaxChatLength)
	}
	pc, err := d.contexts.BuildContext(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	remark := d.remark(ctx, "chat", directorRequest{Type: "chat", PlayerMessage: message, Context: pc})
	directorCallsTotal.WithLabelValues("chat", outcomeOf(remark.Fallback)).Inc()
	if !remark.Fallback {
		d.audit(ctx, models.DecisionChat, userID, sessionID, "chat", remark)
	}
	return remark, nil
}

// Greet welcomes a player in the lobby and may suggest a room.
func (d *Director) Greet(ctx context.Context, userID uint) (*Greeting, error) {
	if _, err := d.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user %d not found", userID)
		}
		return nil, apperrors.Store("load user", err)
	}
	pc, err := d.contexts.BuildContext(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	rooms, err := d.store.RecentRoomStats(ctx, userID, d.policy.TopRooms)
	if err != nil {
		return nil, apperrors.Store("load room history", err)
	}
	req := greetingRequest{
		Type:        "greeting",
		Profile:     pc.UserProfile,
		RoomHistory: []RoomPreference{},
		Streak:      pc.RecentPerformance.CurrentStreak,
	}
	if len(pc.RecentPerformance.LastGames) > 0 {
		req.LastGame = &pc.RecentPerformance.LastGames[0]
	}
	for _, r := range rooms {
		req.RoomHistory = append(req.RoomHistory, RoomPreference{
			RoomID:          r.RoomID,
			GamesPlayed:     r.GamesPlayed,
			GamesWon:        r.GamesWon,
			TotalCoinsWon:   r.TotalCoinsWon,
			PreferenceScore: r.PreferenceScore,
		})
	}

	start := time.Now()
	g, err := await(ctx, d.policy.GenerationTimeout, func(ctx context.Context) (*Greeting, error) {
		var out Greeting
		if err := d.client.Generate(ctx, d.greeting, req, &out); err != nil {
			return nil, err
		}
		if err := d.validate.Struct(out); err != nil {
			return nil, apperrors.Generation(fmt.Errorf("invalid greeting: %w", err))
		}
		return &out, nil
	})
	generationDuration.WithLabelValues("greeting").Observe(time.Since(start).Seconds())
	if err != nil {
		d.log.Warnf("[User %d] greeting fallback: %v", userID, err)
		directorCallsTotal.WithLabelValues("greeting", "fallback").Inc()
		return &Greeting{BotMessage: d.policy.FallbackGreeting, Fallback: true}, nil
	}
	directorCallsTotal.WithLabelValues("greeting", "ok").Inc()
	d.audit(ctx, models.DecisionGreeting, userID, nil, "greeting", g)
	return g, nil
}

// remark calls the generation service within the timeout and validates the
// answer, substituting the fallback on any failure.
func (d *Director) remark(ctx context.Context, kind string, req directorRequest) *Remark {
	start := time.Now()
	r, err := await(ctx, d.policy.GenerationTimeout, func(ctx context.Context) (*Remark, error) {
		var out Remark
		if err := d.client.Generate(ctx, d.instructions, req, &out); err != nil {
			return nil, err
		}
		out.BotMessage = strings.TrimSpace(out.BotMessage)
		if err := d.validate.Struct(out); err != nil {
			return nil, apperrors.Generation(fmt.Errorf("invalid remark: %w", err))
		}
		return &out, nil
	})
	generationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		d.log.Warnf("%s fallback: %v", kind, err)
		return d.fallback()
	}
	return r
}

func (d *Director) fallback() *Remark {
	return &Remark{BotMessage: d.policy.FallbackMessage, EmotionalState: "neutral", Fallback: true}
}

func (d *Director) audit(ctx context.Context, kind models.DecisionKind, userID uint, sessionID *uuid.UUID, trigger string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		d.log.Warnf("encode %s decision: %v", kind, err)
		return
	}
	rec := &models.Decision{Kind: kind, Trigger: trigger, DecisionJSON: datatypes.JSON(b)}
	if userID != 0 {
		rec.UserID = &userID
	}
	if sessionID != nil {
		id := *sessionID
		rec.GameID = &id
	}
	if err := d.store.LogDecision(ctx, rec); err != nil {
		d.log.Warnf("log %s decision: %v", kind, err)
	}
}

func outcomeOf(fallback bool) string {
	if fallback {
		return "fallback"
	}
	return "ok"
}

func buildInstructions(p Policy) string {
	var b strings.Builder
	b.WriteString("You are the friendly coach inside a single-player bingo game. ")
	b.WriteString("You receive JSON with the request type (decision or chat), the trigger, the player context and the current game progress. ")
	b.WriteString("Speak casually, in at most 15 words, and match the player's real progress. Never mention money, gambling or real-world prizes.\n\n")

	b.WriteString("Progress commentary for draw triggers, by marked cells (FREE included). Prefer the phrasings listed in allowed_phrasings when present:\n")
	for _, band := range p.Bands {
		fmt.Fprintf(&b, "- %d to %d marked: %s\n", band.Min, band.Max, quoteAll(band.Phrasings))
	}
	fmt.Fprintf(&b, "- more than %d numbers called and fewer than %d marked: %s\n\n",
		p.ColdDrawThreshold, p.ColdMarkThreshold, quoteAll(p.ColdPhrasings))

	b.WriteString("Other triggers:\n")
	b.WriteString("- game_start: a new player gets \"Hi! I'm your AI coach. Let's play!\"; a player back the same day gets \"Back for more? Let's go!\"; a player back after days away gets \"Hey! Missed you. Ready?\"\n")
	fmt.Fprintf(&b, "- line: celebrate the completed line, mention the +%d coins and push for the full house.\n", p.LineBonus)
	fmt.Fprintf(&b, "- win: celebrate the full house and the +%d coins, for example \"FULL HOUSE! You crushed it!\"\n", p.FullHouseBonus)
	b.WriteString("- chat: answer player_message briefly, in character, using the context.\n\n")

	b.WriteString("Suggest a break when the player has lost several games in a row or has played for a long time.\n")
	b.WriteString("Respond with a single JSON object with keys: emotional_state (string), bot_message (string, required), ")
	b.WriteString("should_suggest_break (boolean), recommended_action (object with action, room_id and reason, or null), ")
	b.WriteString("reward (object with type, coins and reason, or null).")
	return b.String()
}

func buildGreetingInstructions() string {
	return "You greet a bingo player arriving in the lobby. You receive their profile, their last game and the rooms they played recently. " +
		"Write one warm sentence of at most 20 words that references their history when there is one, and optionally recommend a room. " +
		"Never mention money or gambling. Respond with a single JSON object: " +
		"{\"bot_message\": string, \"recommended_action\": {\"room_id\": string, \"reason\": string} or null}."
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, " / ")
}

// DecideForSession builds the event for trigger from the stored session and
// runs Decide on it.
func (d *Director) DecideForSession(ctx context.Context, trigger Trigger, userID uint, sessionID uuid.UUID) (*Remark, bool, error) {
	if !trigger.Valid() {
		return nil, false, apperrors.Validation("unknown trigger %q", trigger)
	}
	g, err := d.store.GetGame(ctx, sessionID)
	if err != nil {
		return nil, false, storeErr("load game", sessionID, err)
	}
	if userID != 0 && g.UserID != userID {
		return nil, false, apperrors.Validation("session %s does not belong to user %d", sessionID, userID)
	}
	ev := Event{
		Trigger:   trigger,
		UserID:    g.UserID,
		SessionID: g.ID,
		DrawCount: g.NumbersCalled,
		Extras:    ExtrasFromGame(g),
	}
	if trigger == TriggerLine {
		ev.Extras.LineBonus = d.policy.LineBonus
	}
	if trigger == TriggerWin {
		ev.Extras.CoinsDelta = g.CoinsWon
	}
	return d.Decide(ctx, ev)
}
