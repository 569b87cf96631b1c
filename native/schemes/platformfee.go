package schemes

import (
	"math/big"

	"trustmesh/native/fees"
)

// Scheme domain identifiers passed to the platform fee engine. These are
// distinct from fees.DomainPOS, which names the teacher's point-of-sale
// flow; here each payment scheme is its own domain so operators can set a
// different merchant-discount-rate and free tier per scheme.
const (
	DomainUpto         = "upto"
	DomainSubscription = "subscription"
	DomainBatch        = "batch"
)

// PlatformFee derives the platform's merchant-discount-rate cut of a
// confirmed scheme payment, generalizing native/fees from the teacher's
// point-of-sale domain to this core's payment schemes. It never changes
// what is charged to the payer or what the ledger/receipt records as the
// transferred amount; it only reports how that amount splits between
// facilitator net payout and platform revenue, for finance reporting and
// the composite score's economic sub-score.
type PlatformFee struct {
	policy fees.Policy
}

// NewPlatformFee constructs a platform fee calculator from a policy. A
// zero-value Policy (no configured domains) makes every Split a no-op:
// fee=0, net=gross.
func NewPlatformFee(policy fees.Policy) *PlatformFee {
	return &PlatformFee{policy: policy.Clone()}
}

// FeeSplit is the non-authoritative breakdown of a charged amount between
// platform fee and facilitator net payout.
type FeeSplit struct {
	GrossMicro      int64
	FeeMicro        int64
	NetMicro        int64
	FreeTierApplied bool
	FeeBasisPoints  uint32
}

// Split evaluates the configured domain policy against a confirmed
// scheme payment. usageCount is the caller's free-tier counter scope
// (typically a monthly transaction count per payer) prior to this charge.
func (p *PlatformFee) Split(domain, asset string, grossMicro int64, usageCount uint64) FeeSplit {
	if p == nil {
		return FeeSplit{GrossMicro: grossMicro, NetMicro: grossMicro}
	}
	cfg, ok := p.policy.DomainConfig(domain)
	if !ok {
		return FeeSplit{GrossMicro: grossMicro, NetMicro: grossMicro}
	}
	result := fees.Apply(fees.ApplyInput{
		Domain:     domain,
		Gross:      big.NewInt(grossMicro),
		UsageCount: usageCount,
		Config:     cfg,
		Asset:      asset,
	})
	return FeeSplit{
		GrossMicro:      grossMicro,
		FeeMicro:        result.Fee.Int64(),
		NetMicro:        result.Net.Int64(),
		FreeTierApplied: result.FreeTierApplied,
		FeeBasisPoints:  result.FeeBasisPoints,
	}
}
