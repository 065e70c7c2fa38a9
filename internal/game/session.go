package game

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/redenvelope/internal/randutil"
)

// Session owns the cards of one game. Every command and every spin tick runs
// under mu, one at a time.
type Session struct {
	mu sync.Mutex

	id       string
	cfg      Config
	engine   *Engine
	cards    []*DigitCard // indexed by position
	rng      *rand.Rand
	clock    quartz.Clock
	interval time.Duration
	bus      *SimpleEventBus
	logger   *log.Logger

	locked int
	result *Result
	fatal  error
	closed bool
}

// NewSession validates cfg and creates one empty card per position.
func NewSession(cfg Config, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sc := defaultSessionConfig()
	for _, opt := range opts {
		opt(sc)
	}
	if err := sc.rules.Validate(); err != nil {
		return nil, &ConfigError{Field: "rules", Reason: err.Error()}
	}
	if sc.spinInterval < 0 {
		return nil, &ConfigError{Field: "spin interval", Value: sc.spinInterval.String(), Reason: "must not be negative"}
	}
	if sc.rng == nil {
		sc.rng = randutil.New(sc.clock.Now().UnixNano())
	}

	s := &Session{
		id:       sc.id,
		cfg:      cfg,
		engine:   NewEngine(cfg, sc.rules),
		cards:    make([]*DigitCard, cfg.DigitCount),
		rng:      sc.rng,
		clock:    sc.clock,
		interval: sc.spinInterval,
		bus:      NewEventBus(),
		logger:   sc.logger.WithPrefix("session"),
	}
	if s.id != "" {
		s.logger = s.logger.With("session", s.id)
	}
	for p := range s.cards {
		s.cards[p] = newDigitCard(p)
	}
	for _, o := range sc.observers {
		s.bus.Subscribe(o)
	}

	s.logger.Debug("Session created", "digits", cfg.DigitCount, "maxPrice", cfg.MaxPrice, "rules", len(sc.rules))
	return s, nil
}

func (s *Session) ID() string { return s.id }
func (s *Session) Config() Config { return s.cfg }
func (s *Session) Engine() *Engine { return s.engine }
func (s *Session) Positions() int { return len(s.cards) }

// Subscribe adds an observer for future events.
func (s *Session) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus.Subscribe(o)
}

// Unsubscribe removes an observer.
func (s *Session) Unsubscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus.Unsubscribe(o)
}

// StartDraw begins spinning the card at position. It is allowed from Idle
// and Drawn; from Drawn it discards the previous value.
func (s *Session) StartDraw(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.card(position, "start draw")
	if err != nil {
		return err
	}
	if card.state != Idle && card.state != Drawn {
		return &TransitionError{Position: position, Op: "start draw", State: card.state}
	}

	allowed := s.engine.AllowedRange(position, s.locks())
	if allowed.IsEmpty() {
		s.logger.Info("Range exhausted", "position", position)
		s.publish(RangeExhaustedEvent{eventMeta: s.meta(), Position: position})
		return &RangeExhaustedError{Position: position}
	}

	card.state = Spinning
	card.set(s.sample(allowed))
	card.spin++
	s.scheduleTick(card)

	s.logger.Debug("Spin started", "position", position, "allowed", allowed)
	s.publishCard(card)
	return nil
}

// StopDraw stops a spinning card on its last sampled digit. Stopping a card
// that is not spinning does nothing.
func (s *Session) StopDraw(position int) error {
	return s.stopDraw(position, 0, false)
}

// StopDrawAt stops a spinning card on value, which must be in the allowed
// range. On rejection the card keeps spinning.
func (s *Session) StopDrawAt(position, value int) error {
	return s.stopDraw(position, value, true)
}

func (s *Session) stopDraw(position, value int, override bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.card(position, "stop draw")
	if err != nil {
		return err
	}
	if card.state != Spinning {
		return nil
	}

	allowed := s.engine.AllowedRange(position, s.locks())
	if allowed.IsEmpty() {
		s.exhaust(card)
		return &RangeExhaustedError{Position: position}
	}
	if override && !allowed.Contains(value) {
		return fmt.Errorf("stop position %d at %d (allowed %s): %w", position, value, allowed, ErrDigitNotAllowed)
	}

	card.cancelSpin()
	switch {
	case override:
		card.set(value)
	case !card.hasValue || !allowed.Contains(card.value):
		card.set(s.sample(allowed))
	}
	card.state = Drawn

	s.logger.Debug("Spin stopped", "position", position, "value", card.value)
	s.publishCard(card)
	return nil
}

// Flip locks a drawn card. The value is re-checked for feasibility first
// because siblings may have locked since it was drawn.
func (s *Session) Flip(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.card(position, "flip")
	if err != nil {
		return err
	}
	switch card.state {
	case Idle:
		return fmt.Errorf("flip position %d: %w", position, ErrNoValue)
	case Spinning, Locked:
		return &TransitionError{Position: position, Op: "flip", State: card.state}
	}
	if !card.hasValue {
		return fmt.Errorf("flip position %d: %w", position, ErrNoValue)
	}

	// Rules shape the draw only; a held value is re-checked against the cap.
	if !s.engine.Feasible(position, card.value, s.locks()) {
		s.logger.Info("Flip rejected", "position", position, "value", card.value, "maxPrice", s.cfg.MaxPrice)
		return fmt.Errorf("flip position %d value %d (max %d): %w", position, card.value, s.cfg.MaxPrice, ErrInfeasible)
	}

	card.state = Locked
	s.locked++

	s.logger.Debug("Card locked", "position", position, "value", card.value, "locked", s.locked)
	s.publishCard(card)
	s.publish(ProgressEvent{eventMeta: s.meta(), Locked: s.locked, Count: len(s.cards)})

	if s.locked == len(s.cards) {
		return s.finalize()
	}
	return nil
}

// finalize runs exactly once, from the flip that locks the last card.
func (s *Session) finalize() error {
	total := s.total()
	if s.cfg.Limited() && total > s.cfg.MaxPrice {
		err := &InvariantError{Total: total, MaxPrice: s.cfg.MaxPrice}
		s.fatal = err
		s.logger.Error("Invariant violated", "total", total, "maxPrice", s.cfg.MaxPrice)
		return err
	}

	digits := make([]int, 0, len(s.cards))
	for p := len(s.cards) - 1; p >= 0; p-- {
		digits = append(digits, s.cards[p].value)
	}
	res := Result{
		Total:    total,
		Digits:   digits,
		MaxPrice: s.cfg.MaxPrice,
		Outcome:  Evaluate(total, s.cfg.MaxPrice),
	}
	s.result = &res

	s.logger.Info("Session finalized", "total", total, "outcome", res.Outcome)
	s.publish(FinalizedEvent{eventMeta: s.meta(), Result: res})
	return nil
}

// AllowedRange returns the live legal digits for position.
func (s *Session) AllowedRange(position int) (DigitSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position < 0 || position >= len(s.cards) {
		return EmptySet, fmt.Errorf("allowed range position %d: %w", position, ErrUnknownPosition)
	}
	return s.engine.AllowedRange(position, s.locks()), nil
}

// Result returns the final result once every card is locked.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Total is the sum of the locked digits so far.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total()
}

// Err returns the fatal error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// Close cancels every pending spin. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, c := range s.cards {
		c.cancelSpin()
	}
	s.logger.Debug("Session closed")
}

// Snapshot is a consistent copy of the whole session.
type Snapshot struct {
	ID         string     `json:"id,omitempty"`
	DigitCount int        `json:"digitCount"`
	MaxPrice   int        `json:"maxPrice,omitempty"`
	Cards      []CardView `json:"cards"` // most significant first
	Locked     int        `json:"locked"`
	Total      int        `json:"total"`
	Result     *Result    `json:"result,omitempty"`
	Closed     bool       `json:"closed,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Snapshot copies the session state. Unlocked cards carry their live range.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	locks := s.locks()
	snap := Snapshot{
		ID:         s.id,
		DigitCount: s.cfg.DigitCount,
		MaxPrice:   s.cfg.MaxPrice,
		Cards:      make([]CardView, 0, len(s.cards)),
		Locked:     s.locked,
		Total:      s.total(),
		Closed:     s.closed,
	}
	for p := len(s.cards) - 1; p >= 0; p-- {
		v := s.cards[p].View()
		if v.State != Locked {
			v.Allowed = s.engine.AllowedRange(p, locks).Digits()
		}
		snap.Cards = append(snap.Cards, v)
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.fatal != nil {
		snap.Error = s.fatal.Error()
	}
	return snap
}

func (s *Session) card(position int, op string) (*DigitCard, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.fatal != nil {
		return nil, s.fatal
	}
	if position < 0 || position >= len(s.cards) {
		return nil, fmt.Errorf("%s position %d: %w", op, position, ErrUnknownPosition)
	}
	return s.cards[position], nil
}

func (s *Session) locks() map[int]int {
	locked := make(map[int]int, s.locked)
	for _, c := range s.cards {
		if c.state == Locked {
			locked[c.position] = c.value
		}
	}
	return locked
}

func (s *Session) total() int {
	total := 0
	for _, c := range s.cards {
		if c.state == Locked {
			total += c.value * pow10(c.position)
		}
	}
	return total
}

func (s *Session) sample(allowed DigitSet) int {
	return randutil.Pick(s.rng, allowed.Digits())
}

func (s *Session) scheduleTick(card *DigitCard) {
	if s.interval <= 0 {
		return
	}
	gen := card.spin
	card.timer = s.clock.AfterFunc(s.interval, func() {
		s.tick(card, gen)
	}, "spin", strconv.Itoa(card.position))
}

// tick re-samples a spinning card. Ticks from a cancelled spin are ignored.
func (s *Session) tick(card *DigitCard, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || card.state != Spinning || card.spin != gen {
		return
	}
	card.timer = nil

	allowed := s.engine.AllowedRange(card.position, s.locks())
	if allowed.IsEmpty() {
		s.exhaust(card)
		return
	}
	card.set(s.sample(allowed))
	s.publishCard(card)
	s.scheduleTick(card)
}

// exhaust forces a card back to Idle with no value.
func (s *Session) exhaust(card *DigitCard) {
	card.cancelSpin()
	card.state = Idle
	card.clear()

	s.logger.Info("Range exhausted", "position", card.position)
	s.publishCard(card)
	s.publish(RangeExhaustedEvent{eventMeta: s.meta(), Position: card.position})
}

func (s *Session) meta() eventMeta {
	return eventMeta{sessionID: s.id, timestamp: s.clock.Now()}
}

func (s *Session) publishCard(card *DigitCard) {
	s.publish(CardChangedEvent{eventMeta: s.meta(), Card: card.View()})
}

func (s *Session) publish(event Event) {
	s.bus.Publish(event)
}
