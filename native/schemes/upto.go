package schemes

import (
	"sync"
	"time"

	"trustmesh/native/ledger"

	"github.com/google/uuid"
)

// UptoEngine manages variable-with-cap authorizations: a payer pre-commits a
// ceiling and the payee draws it down per usage unit.
type UptoEngine struct {
	store       Store
	ledger      *ledger.Ledger
	nowFn       func() time.Time
	platformFee *PlatformFee
	mu          sync.Mutex
}

// NewUptoEngine constructs an upto-scheme engine.
func NewUptoEngine(store Store, l *ledger.Ledger) *UptoEngine {
	return &UptoEngine{store: store, ledger: l, nowFn: time.Now}
}

// SetPlatformFee attaches a platform fee calculator. When set, Charge
// additionally reports the merchant-discount-rate split of the charged
// amount without altering what is drawn down against the authorization.
func (u *UptoEngine) SetPlatformFee(pf *PlatformFee) {
	if u == nil {
		return
	}
	u.platformFee = pf
}

// SetNowFunc overrides the wall clock used for expiry checks.
func (u *UptoEngine) SetNowFunc(now func() time.Time) {
	if u == nil {
		return
	}
	if now == nil {
		u.nowFn = time.Now
		return
	}
	u.nowFn = now
}

func (u *UptoEngine) now() time.Time {
	if u == nil || u.nowFn == nil {
		return time.Now()
	}
	return u.nowFn()
}

// Authorize creates a new upto authorization.
func (u *UptoEngine) Authorize(payer, payee string, maxAmountMicro, baseCostMicro, unitCostMicro int64, unitType string, expiresAt time.Time) (*PaymentAuthorization, error) {
	if u == nil || u.store == nil {
		return nil, ErrAuthorizationNotFound
	}
	if maxAmountMicro < 0 || baseCostMicro < 0 || unitCostMicro < 0 {
		return nil, ErrInvalidRange
	}
	now := u.now()
	auth := &PaymentAuthorization{
		AuthorizationID: uuid.NewString(),
		Payer:           payer,
		Payee:           payee,
		MaxAmountMicro:  maxAmountMicro,
		BaseCostMicro:   baseCostMicro,
		UnitCostMicro:   unitCostMicro,
		UnitType:        unitType,
		Status:          AuthorizationActive,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.store.PutAuthorization(auth); err != nil {
		return nil, err
	}
	return auth, nil
}

// ChargeBreakdown details how a charge amount was composed.
type ChargeBreakdown struct {
	BaseCostMicro    int64
	UnitCostMicro    int64
	Units            int64
	UncappedMicro    int64
	AmountMicro      int64
	CappedByCeiling  bool
	PlatformFee      FeeSplit
}

// Charge draws down an authorization for the given number of usage units,
// capping at the authorization's remaining amount, and materializes the
// backing confirmed payment and receipt through the ledger using signature
// as the on-chain transaction reference. Concurrent Charge and Revoke calls
// on one engine serialize on its mutex, so the read-modify-write of an
// authorization cannot interleave.
func (u *UptoEngine) Charge(authorizationID string, units int64, signature string, timestamp time.Time) (*PaymentAuthorization, ChargeBreakdown, error) {
	if u == nil || u.store == nil {
		return nil, ChargeBreakdown{}, ErrAuthorizationNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if units < 0 {
		return nil, ChargeBreakdown{}, ErrInvalidRange
	}

	auth, ok, err := u.store.GetAuthorization(authorizationID)
	if err != nil {
		return nil, ChargeBreakdown{}, err
	}
	if !ok {
		return nil, ChargeBreakdown{}, ErrAuthorizationNotFound
	}

	if auth.Status == AuthorizationActive && !auth.ExpiresAt.IsZero() && u.now().After(auth.ExpiresAt) {
		auth.Status = AuthorizationExpired
	}
	switch auth.Status {
	case AuthorizationExhausted:
		return nil, ChargeBreakdown{}, ErrAuthorizationExhausted
	case AuthorizationExpired:
		return nil, ChargeBreakdown{}, ErrAuthorizationExpired
	case AuthorizationRevoked:
		return nil, ChargeBreakdown{}, ErrAuthorizationRevoked
	}

	remaining := auth.RemainingMicro()
	uncapped := auth.BaseCostMicro + auth.UnitCostMicro*units
	amount := uncapped
	capped := false
	if amount > remaining {
		amount = remaining
		capped = true
	}

	usageCount := auth.ChargeCount
	auth.UsedMicro += amount
	auth.ChargeCount++
	auth.UpdatedAt = u.now()
	if auth.RemainingMicro() == 0 {
		auth.Status = AuthorizationExhausted
	}
	if err := u.store.PutAuthorization(auth); err != nil {
		return nil, ChargeBreakdown{}, err
	}

	if u.ledger != nil && amount > 0 {
		if _, err := u.ledger.Observe(ledger.PaymentEvent{
			Signature:   signature,
			Payer:       auth.Payer,
			Payee:       auth.Payee,
			AmountMicro: amount,
			Status:      ledger.StatusConfirmed,
			Timestamp:   timestamp,
		}); err != nil {
			return nil, ChargeBreakdown{}, err
		}
	}

	breakdown := ChargeBreakdown{
		BaseCostMicro:   auth.BaseCostMicro,
		UnitCostMicro:   auth.UnitCostMicro,
		Units:           units,
		UncappedMicro:   uncapped,
		AmountMicro:     amount,
		CappedByCeiling: capped,
	}
	if u.platformFee != nil {
		breakdown.PlatformFee = u.platformFee.Split(DomainUpto, "NHB", amount, usageCount)
	}
	return auth, breakdown, nil
}

// Revoke transitions an authorization to revoked, a one-way terminal state.
func (u *UptoEngine) Revoke(authorizationID string) error {
	if u == nil || u.store == nil {
		return ErrAuthorizationNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	auth, ok, err := u.store.GetAuthorization(authorizationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthorizationNotFound
	}
	if auth.Status != AuthorizationActive {
		return nil
	}
	auth.Status = AuthorizationRevoked
	auth.UpdatedAt = u.now()
	return u.store.PutAuthorization(auth)
}

// Get returns the authorization record.
func (u *UptoEngine) Get(authorizationID string) (*PaymentAuthorization, bool, error) {
	if u == nil || u.store == nil {
		return nil, false, nil
	}
	return u.store.GetAuthorization(authorizationID)
}
