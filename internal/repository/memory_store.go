package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ursol-insurance/internal/model"
)

// MemoryStore keeps every collection in process memory. Records are held
// by value and copied on the way in and out so callers never share state
// with the store.
type MemoryStore struct {
	mu sync.RWMutex

	users         map[string]model.User
	policies      []model.Policy
	staking       []model.StakingPosition
	loans         []model.Loan
	beneficiaries map[string]model.Beneficiary // keyed by user id
	claims        []model.Claim
	activities    []model.Activity
	payments      []model.Payment

	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         map[string]model.User{},
		beneficiaries: map[string]model.Beneficiary{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) stamp(id *string, at *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if at.IsZero() {
		*at = s.now()
	}
}

func cloneRaw(m json.RawMessage) json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(json.RawMessage, len(m))
	copy(out, m)
	return out
}

// ---- users ----

func (s *MemoryStore) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByAddress(_ context.Context, address string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Address, address) {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&u.ID, &u.CreatedAt)
	if _, exists := s.users[u.ID]; exists {
		return ErrConflict
	}
	for _, other := range s.users {
		if strings.EqualFold(other.Address, u.Address) {
			return ErrConflict
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) UpdateUserBalance(_ context.Context, id, balance string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	u.UrsolBalance = balance
	s.users[id] = u
	return u, nil
}

func (s *MemoryStore) SetUserVerified(_ context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsWorldIDVerified = verified
	s.users[id] = u
	return nil
}

// ---- policies ----

func (s *MemoryStore) ListPolicies(_ context.Context, userID string) ([]model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Policy{}
	for _, p := range s.policies {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPolicy(_ context.Context, id string) (model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.policies {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Policy{}, ErrNotFound
}

func (s *MemoryStore) CreatePolicy(_ context.Context, p *model.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.policies {
		if existing.TokenID == p.TokenID {
			return ErrConflict
		}
	}
	s.stamp(&p.ID, &p.CreatedAt)
	s.policies = append(s.policies, *p)
	return nil
}

// ---- staking ----

func (s *MemoryStore) ListStakingPositions(_ context.Context, userID string) ([]model.StakingPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.StakingPosition{}
	for _, sp := range s.staking {
		if sp.UserID == userID {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetStakingPosition(_ context.Context, id string) (model.StakingPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.staking {
		if sp.ID == id {
			return sp, nil
		}
	}
	return model.StakingPosition{}, ErrNotFound
}

func (s *MemoryStore) CreateStakingPosition(_ context.Context, sp *model.StakingPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&sp.ID, &sp.CreatedAt)
	s.staking = append(s.staking, *sp)
	return nil
}

func (s *MemoryStore) UpdatePendingRewards(_ context.Context, id, rewards string) (model.StakingPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.staking {
		if s.staking[i].ID == id {
			s.staking[i].PendingRewards = rewards
			return s.staking[i], nil
		}
	}
	return model.StakingPosition{}, ErrNotFound
}

// ---- loans ----

func (s *MemoryStore) ListLoans(_ context.Context, userID string) ([]model.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Loan{}
	for _, l := range s.loans {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateLoan(_ context.Context, l *model.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&l.ID, &l.CreatedAt)
	s.loans = append(s.loans, *l)
	return nil
}

// ---- beneficiaries ----

func (s *MemoryStore) GetBeneficiary(_ context.Context, userID string) (model.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.beneficiaries[userID]
	if !ok {
		return model.Beneficiary{}, ErrNotFound
	}
	b.OnChainSettings = cloneRaw(b.OnChainSettings)
	return b, nil
}

func (s *MemoryStore) PutBeneficiary(_ context.Context, b *model.Beneficiary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.beneficiaries[b.UserID]; ok {
		b.ID = existing.ID
		b.CreatedAt = existing.CreatedAt
	} else {
		s.stamp(&b.ID, &b.CreatedAt)
	}
	b.UpdatedAt = now
	stored := *b
	stored.OnChainSettings = cloneRaw(b.OnChainSettings)
	s.beneficiaries[b.UserID] = stored
	return nil
}

// ---- claims ----

func (s *MemoryStore) ListClaims(_ context.Context, userID string) ([]model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Claim{}
	for _, c := range s.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateClaim(_ context.Context, c *model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&c.ID, &c.SubmittedAt)
	s.claims = append(s.claims, *c)
	return nil
}

// ---- activities ----

func (s *MemoryStore) ListActivities(_ context.Context, userID string) ([]model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Activity{}
	for _, a := range s.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateActivity(_ context.Context, a *model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendActivity(a)
	return nil
}

func (s *MemoryStore) appendActivity(a *model.Activity) {
	s.stamp(&a.ID, &a.CreatedAt)
	s.activities = append(s.activities, *a)
}

// ---- payments ----

func (s *MemoryStore) ListPayments(_ context.Context, userID string) ([]model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Payment{}
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetPaymentByReference(_ context.Context, reference string) (model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.paymentIndex(reference); i >= 0 {
		return s.payments[i], nil
	}
	return model.Payment{}, ErrNotFound
}

func (s *MemoryStore) CreatePayment(_ context.Context, p *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paymentIndex(p.Reference) >= 0 {
		return ErrConflict
	}
	s.stamp(&p.ID, &p.CreatedAt)
	s.payments = append(s.payments, *p)
	return nil
}

func (s *MemoryStore) UpdatePayment(_ context.Context, p model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePayment(p)
}

func (s *MemoryStore) CompletePayment(_ context.Context, p model.Payment, a *model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.paymentIndex(p.Reference)
	if i < 0 {
		return ErrNotFound
	}
	if s.payments[i].Status != model.PaymentPending {
		return ErrNotPending
	}
	if err := s.updatePayment(p); err != nil {
		return err
	}
	s.appendActivity(a)
	return nil
}

func (s *MemoryStore) updatePayment(p model.Payment) error {
	i := s.paymentIndex(p.Reference)
	if i < 0 {
		return ErrNotFound
	}
	cur := &s.payments[i]
	cur.Status = p.Status
	cur.TransactionID = p.TransactionID
	cur.LedgerTxHash = p.LedgerTxHash
	cur.CompletedAt = p.CompletedAt
	return nil
}

func (s *MemoryStore) paymentIndex(reference string) int {
	for i := range s.payments {
		if s.payments[i].Reference == reference {
			return i
		}
	}
	return -1
}

var _ Store = (*MemoryStore)(nil)
