// internal/shuffle/shuffle.go
package shuffle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AndrioCelos/unobot/internal/models"
)

// Attestation records how a shuffle was produced so a round's fairness can
// be audited after the fact. Fallback shuffles record the failure reason
// in the same trail.
type Attestation struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"` // "attested" or "local"
	Signature   string    `json:"signature,omitempty"`
	Serial      int64     `json:"serial,omitempty"`
	FailReason  string    `json:"fail_reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Shuffler produces a permutation of the given cards. Implementations must
// return a permutation of the exact input multiset.
type Shuffler interface {
	Shuffle(ctx context.Context, cards []models.Card) ([]models.Card, Attestation)
}

// LocalShuffler is a seedable Fisher-Yates shuffle, used directly in tests
// and as the fallback when the attestation service is unreachable.
type LocalShuffler struct {
	rng *rand.Rand
}

// NewLocalShuffler seeds a local shuffler. The same seed always yields the
// same permutation sequence, which the determinism tests rely on.
func NewLocalShuffler(seed int64) *LocalShuffler {
	return &LocalShuffler{rng: rand.New(rand.NewSource(seed))}
}

func (s *LocalShuffler) Shuffle(_ context.Context, cards []models.Card) ([]models.Card, Attestation) {
	out := make([]models.Card, len(cards))
	copy(out, cards)
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	id, _ := uuid.NewRandom()
	return out, Attestation{ID: id, Source: "local", RequestedAt: time.Now()}
}

// Guard serializes shuffles system-wide. The attestation service is
// rate-limited, so only one request may be in flight at a time; callers
// tolerate a short wait before the first hand is dealt.
type Guard struct {
	slot chan struct{}
}

func NewGuard() *Guard {
	g := &Guard{slot: make(chan struct{}, 1)}
	g.slot <- struct{}{}
	return g
}

func (g *Guard) acquire(ctx context.Context) error {
	select {
	case <-g.slot:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guard) release() {
	g.slot <- struct{}{}
}

// permutationRequest and permutationResponse are the wire format of the
// randomness attestation service.
type permutationRequest struct {
	N int `json:"n"`
}

type permutationResponse struct {
	Permutation []int  `json:"permutation"`
	Signature   string `json:"signature"`
	Serial      int64  `json:"serial"`
}

// AttestedShuffler asks an external randomness attestation service for a
// signed permutation and falls back to a local shuffle on any failure.
// Every shuffle, attested or not, is handed to the audit sink.
type AttestedShuffler struct {
	URL      string
	Client   *http.Client
	Timeout  time.Duration
	Guard    *Guard
	Fallback *LocalShuffler
	Logger   *logrus.Logger

	// AuditFn receives the attestation for every shuffle. May be nil.
	AuditFn func(Attestation)
}

// NewAttestedShuffler wires an attested shuffler with the given guard and
// fallback. url may be empty, in which case every shuffle is local.
func NewAttestedShuffler(url string, guard *Guard, fallback *LocalShuffler, logger *logrus.Logger) *AttestedShuffler {
	return &AttestedShuffler{
		URL:      url,
		Client:   &http.Client{},
		Timeout:  5 * time.Second,
		Guard:    guard,
		Fallback: fallback,
		Logger:   logger,
	}
}

func (s *AttestedShuffler) Shuffle(ctx context.Context, cards []models.Card) ([]models.Card, Attestation) {
	out, att := s.shuffle(ctx, cards)
	if s.AuditFn != nil {
		s.AuditFn(att)
	}
	return out, att
}

func (s *AttestedShuffler) shuffle(ctx context.Context, cards []models.Card) ([]models.Card, Attestation) {
	if s.URL == "" {
		return s.Fallback.Shuffle(ctx, cards)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Guard.acquire(ctx); err != nil {
		return s.fallback(ctx, cards, fmt.Errorf("shuffle guard: %w", err))
	}
	defer s.Guard.release()

	resp, err := s.requestPermutation(ctx, len(cards))
	if err != nil {
		return s.fallback(ctx, cards, err)
	}
	out, err := applyPermutation(cards, resp.Permutation)
	if err != nil {
		return s.fallback(ctx, cards, err)
	}

	id, _ := uuid.NewRandom()
	return out, Attestation{
		ID:          id,
		Source:      "attested",
		Signature:   resp.Signature,
		Serial:      resp.Serial,
		RequestedAt: time.Now(),
	}
}

func (s *AttestedShuffler) requestPermutation(ctx context.Context, n int) (*permutationResponse, error) {
	body, err := json.Marshal(permutationRequest{N: n})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("attestation request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attestation service returned %d", httpResp.StatusCode)
	}
	var resp permutationResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("attestation response decode failed: %w", err)
	}
	return &resp, nil
}

// fallback shuffles locally and records the failure reason in the
// attestation. The failure is logged but never surfaced to players.
func (s *AttestedShuffler) fallback(ctx context.Context, cards []models.Card, cause error) ([]models.Card, Attestation) {
	if s.Logger != nil {
		s.Logger.WithError(cause).Warn("attested shuffle failed, falling back to local shuffle")
	}
	out, att := s.Fallback.Shuffle(ctx, cards)
	att.FailReason = cause.Error()
	return out, att
}

// applyPermutation rearranges cards by the given index permutation,
// validating that it is in fact a permutation of 0..len-1.
func applyPermutation(cards []models.Card, perm []int) ([]models.Card, error) {
	if len(perm) != len(cards) {
		return nil, fmt.Errorf("permutation length %d does not match %d cards", len(perm), len(cards))
	}
	seen := make([]bool, len(cards))
	out := make([]models.Card, len(cards))
	for i, p := range perm {
		if p < 0 || p >= len(cards) || seen[p] {
			return nil, fmt.Errorf("invalid permutation index %d at position %d", p, i)
		}
		seen[p] = true
		out[i] = cards[p]
	}
	return out, nil
}
