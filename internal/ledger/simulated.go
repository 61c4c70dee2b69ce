package ledger

import (
	"context"
	"encoding/hex"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/iliyamo/ursol-insurance/internal/metrics"
)

// Simulated is an in-memory ledger. The latest transfer per reference wins.
type Simulated struct {
	mu     sync.RWMutex
	events map[string]TransferEvent
	now    func() time.Time
}

// NewSimulated returns an empty simulated ledger.
func NewSimulated() *Simulated {
	return &Simulated{
		events: map[string]TransferEvent{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Simulated) SimulateTransfer(_ context.Context, ev TransferEvent) (TransferEvent, error) {
	if ev.Reference == "" {
		return TransferEvent{}, ErrNoReference
	}
	if ev.From == "" {
		ev.From = ZeroAddress
	}
	if ev.Token == "" {
		ev.Token = TokenAddress(ev.Currency)
	}
	ev.ObservedAt = s.now()
	ev.BlockNumber = 1_000_000 + rand.Uint64N(9_000_000)
	ev.TxHash = txHash(ev)

	s.mu.Lock()
	s.events[ev.Reference] = ev
	s.mu.Unlock()
	metrics.RecordLedgerEvent("simulated")
	return ev, nil
}

func (s *Simulated) VerifyByReference(_ context.Context, reference string) (Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[reference]
	return Verification{Found: ok, Event: ev}, nil
}

// Count returns the number of references with a recorded transfer.
func (s *Simulated) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// txHash is keccak-256 over the event fields, rendered as 0x-prefixed hex.
func txHash(ev TransferEvent) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(strings.Join([]string{
		ev.Reference, strings.ToLower(ev.From), strings.ToLower(ev.To), strings.ToLower(ev.Token),
		ev.Amount, strconv.FormatUint(ev.BlockNumber, 10), strconv.FormatInt(ev.ObservedAt.UnixNano(), 10),
	}, "|")))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
