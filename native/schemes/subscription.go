package schemes

import (
	"time"

	"trustmesh/native/ledger"

	"github.com/google/uuid"
)

// SubscriptionEngine manages recurring payment arrangements.
type SubscriptionEngine struct {
	store       Store
	ledger      *ledger.Ledger
	nowFn       func() time.Time
	platformFee *PlatformFee
}

// NewSubscriptionEngine constructs a subscription-scheme engine.
func NewSubscriptionEngine(store Store, l *ledger.Ledger) *SubscriptionEngine {
	return &SubscriptionEngine{store: store, ledger: l, nowFn: time.Now}
}

// SetPlatformFee attaches a platform fee calculator. When set,
// RecordPayment additionally reports the merchant-discount-rate split of
// the renewal amount without altering what is recorded on the ledger.
func (s *SubscriptionEngine) SetPlatformFee(pf *PlatformFee) {
	if s == nil {
		return
	}
	s.platformFee = pf
}

// SetNowFunc overrides the wall clock used for lifecycle sweeps.
func (s *SubscriptionEngine) SetNowFunc(now func() time.Time) {
	if s == nil {
		return
	}
	if now == nil {
		s.nowFn = time.Now
		return
	}
	s.nowFn = now
}

func (s *SubscriptionEngine) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now()
	}
	return s.nowFn()
}

// Create starts a new subscription. If trialEnd is non-zero the initial
// status is trial; otherwise it is active.
func (s *SubscriptionEngine) Create(subscriber, provider string, amountMicro int64, period time.Duration, autoRenew bool, graceSeconds int64, trialEnd time.Time, periodStart, periodEnd time.Time) (*Subscription, error) {
	if s == nil || s.store == nil {
		return nil, ErrSubscriptionNotFound
	}
	if !periodEnd.After(periodStart) {
		return nil, ErrInvalidRange
	}
	status := SubscriptionActive
	if !trialEnd.IsZero() {
		status = SubscriptionTrial
	}
	sub := &Subscription{
		SubscriptionID:     uuid.NewString(),
		Subscriber:         subscriber,
		Provider:           provider,
		AmountMicro:        amountMicro,
		Period:             period,
		Status:             status,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		AutoRenew:          autoRenew,
		GraceSeconds:       graceSeconds,
		TrialEnd:           trialEnd,
	}
	if err := s.store.PutSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// RecordPayment advances the current period, increments the renewal count,
// promotes a trial subscription to active, and materializes a confirmed
// payment through the ledger.
func (s *SubscriptionEngine) RecordPayment(subscriptionID string, periodStart, periodEnd time.Time, signature string) (*Subscription, error) {
	if s == nil || s.store == nil {
		return nil, ErrSubscriptionNotFound
	}
	if !periodEnd.After(periodStart) {
		return nil, ErrInvalidRange
	}
	sub, ok, err := s.store.GetSubscription(subscriptionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubscriptionNotFound
	}

	sub.CurrentPeriodStart = periodStart
	sub.CurrentPeriodEnd = periodEnd
	sub.RenewalCount++
	if sub.Status == SubscriptionTrial || sub.Status == SubscriptionPaused {
		sub.Status = SubscriptionActive
	}
	if err := s.store.PutSubscription(sub); err != nil {
		return nil, err
	}

	if s.ledger != nil {
		if _, err := s.ledger.Observe(ledger.PaymentEvent{
			Signature:   signature,
			Payer:       sub.Subscriber,
			Payee:       sub.Provider,
			AmountMicro: sub.AmountMicro,
			Status:      ledger.StatusConfirmed,
			Timestamp:   periodStart,
		}); err != nil {
			return nil, err
		}
	}
	if s.platformFee != nil {
		sub.LastPlatformFee = s.platformFee.Split(DomainSubscription, "NHB", sub.AmountMicro, uint64(sub.RenewalCount-1))
	}
	if err := s.store.PutSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel sets the subscription to cancelled. If immediate is true the
// transition happens now; otherwise auto-renewal is switched off and the
// cancellation takes effect at Sweep once the current period ends.
func (s *SubscriptionEngine) Cancel(subscriptionID string, immediate bool) error {
	if s == nil || s.store == nil {
		return ErrSubscriptionNotFound
	}
	sub, ok, err := s.store.GetSubscription(subscriptionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubscriptionNotFound
	}
	if immediate {
		sub.Status = SubscriptionCancelled
		return s.store.PutSubscription(sub)
	}
	sub.AutoRenew = false
	sub.CancelRequested = true
	return s.store.PutSubscription(sub)
}

// Sweep transitions past-due subscriptions. A subscription past
// current_period_end plus its grace period with auto_renew=false becomes
// expired, or cancelled if a non-immediate cancellation was requested.
// auto_renew=true subscriptions remain active pending their next payment.
func (s *SubscriptionEngine) Sweep() error {
	if s == nil || s.store == nil {
		return nil
	}
	subs, err := s.store.ListSubscriptions()
	if err != nil {
		return err
	}
	now := s.now()
	for _, sub := range subs {
		if sub.Status != SubscriptionActive && sub.Status != SubscriptionTrial {
			continue
		}
		deadline := sub.CurrentPeriodEnd.Add(time.Duration(sub.GraceSeconds) * time.Second)
		if now.Before(deadline) {
			continue
		}
		if sub.AutoRenew {
			continue
		}
		if sub.CancelRequested {
			sub.Status = SubscriptionCancelled
		} else {
			sub.Status = SubscriptionExpired
		}
		if err := s.store.PutSubscription(sub); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the subscription record.
func (s *SubscriptionEngine) Get(subscriptionID string) (*Subscription, bool, error) {
	if s == nil || s.store == nil {
		return nil, false, nil
	}
	return s.store.GetSubscription(subscriptionID)
}
