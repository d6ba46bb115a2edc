package vouch

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// MaxCommentLen bounds the free-text comment.
	MaxCommentLen = 250
	// CommentWindow is how long a buyer has to add a comment after rating.
	CommentWindow = 2 * time.Minute
)

var (
	ErrNotEligible    = errors.New("no completed order to vouch for")
	ErrInvalidStars   = errors.New("stars must be between 1 and 5")
	ErrNoPendingVouch = errors.New("no vouch awaiting a comment")
	ErrAlreadyVouched = errors.New("a vouch was already submitted for this order")
)

// CompletionGate reports whether a scope holds a completed order and who
// bought it.
type CompletionGate func(scope string) (buyer string, completed bool)

type pending struct {
	buyer string
	stars int
	timer *time.Timer
}

// Flow collects a star rating and an optional comment after an order
// completes. One vouch per scope; the comment step times out and the rating
// is persisted without one.
type Flow struct {
	mu      sync.Mutex
	store   *Store
	gate    CompletionGate
	window  time.Duration
	pending map[string]*pending
	done    map[string]bool
	logger  *slog.Logger
}

func NewFlow(store *Store, gate CompletionGate, logger *slog.Logger) *Flow {
	return &Flow{
		store:   store,
		gate:    gate,
		window:  CommentWindow,
		pending: make(map[string]*pending),
		done:    make(map[string]bool),
		logger:  logger,
	}
}

// Rate opens the comment window for a scope. Only the buyer of the scope's
// completed order may rate, and only once.
func (f *Flow) Rate(scope, buyer string, stars int) error {
	if stars < 1 || stars > 5 {
		return ErrInvalidStars
	}

	owner, completed := f.gate(scope)
	if !completed || owner != buyer {
		return ErrNotEligible
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done[scope] {
		return ErrAlreadyVouched
	}
	if p, ok := f.pending[scope]; ok {
		// re-rating before the comment window closes updates the stars
		p.stars = stars
		return nil
	}

	p := &pending{buyer: buyer, stars: stars}
	p.timer = time.AfterFunc(f.window, func() { f.expire(scope) })
	f.pending[scope] = p
	return nil
}

// Comment finalizes the pending vouch. The literal text "cancel" submits the
// rating without a comment; anything else is truncated to MaxCommentLen.
func (f *Flow) Comment(scope, buyer, text string) (Record, error) {
	f.mu.Lock()
	p, ok := f.pending[scope]
	if !ok || p.buyer != buyer {
		f.mu.Unlock()
		return Record{}, ErrNoPendingVouch
	}
	p.timer.Stop()
	delete(f.pending, scope)
	f.done[scope] = true
	stars := p.stars
	f.mu.Unlock()

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "cancel") {
		text = ""
	}
	if len(text) > MaxCommentLen {
		text = text[:MaxCommentLen]
	}

	return f.finalize(scope, stars, text)
}

// expire fires when the comment window closes; the rating is kept.
func (f *Flow) expire(scope string) {
	f.mu.Lock()
	p, ok := f.pending[scope]
	if !ok {
		f.mu.Unlock()
		return
	}
	delete(f.pending, scope)
	f.done[scope] = true
	stars := p.stars
	f.mu.Unlock()

	if _, err := f.finalize(scope, stars, ""); err != nil {
		f.logger.Error("failed to persist vouch on timeout", "error", err, "scope", scope)
	}
}

func (f *Flow) finalize(scope string, stars int, comment string) (Record, error) {
	r := Record{
		Stars:   stars,
		Comment: comment,
		At:      time.Now().UTC(),
		Ref:     NewRef(),
	}
	if err := f.store.Append(r); err != nil {
		return Record{}, err
	}
	f.logger.Info("vouch recorded", "scope", scope, "stars", stars, "ref", r.Ref)
	return r, nil
}
