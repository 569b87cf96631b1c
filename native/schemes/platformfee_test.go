package schemes_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trustmesh/native/fees"
	"trustmesh/native/ledger"
	"trustmesh/native/schemes"
	"trustmesh/storage"
)

func TestUptoChargeReportsPlatformFeeSplit(t *testing.T) {
	mem := storage.NewMemory()
	l := ledger.NewLedger(mem)
	engine := schemes.NewUptoEngine(mem, l)
	engine.SetPlatformFee(schemes.NewPlatformFee(fees.Policy{Domains: map[string]fees.DomainPolicy{
		schemes.DomainUpto: {MDRBasisPoints: 150},
	}}))

	auth, err := engine.Authorize("A", "B", 1_000_000, 100, 5, "tokens", time.Time{})
	require.NoError(t, err)

	// Exhaust the (default, 100-transaction) free tier with cheap one-unit
	// charges first so the charge under test actually pays the MDR fee.
	for i := 0; i < 100; i++ {
		_, _, err := engine.Charge(auth.AuthorizationID, 1, fmt.Sprintf("WARMUP%d", i), time.Now())
		require.NoError(t, err)
	}

	_, breakdown, err := engine.Charge(auth.AuthorizationID, 1000, "SIG1", time.Now())
	require.NoError(t, err)
	require.False(t, breakdown.PlatformFee.FreeTierApplied, "expected free tier to be exhausted by the 101st charge")

	wantFee := breakdown.AmountMicro * 150 / 10000
	require.Equal(t, wantFee, breakdown.PlatformFee.FeeMicro)
	require.Equal(t, breakdown.AmountMicro-wantFee, breakdown.PlatformFee.NetMicro)
}

func TestUptoChargeWithoutPlatformFeeIsNoOp(t *testing.T) {
	mem := storage.NewMemory()
	l := ledger.NewLedger(mem)
	engine := schemes.NewUptoEngine(mem, l)

	auth, err := engine.Authorize("A", "B", 10000, 100, 5, "tokens", time.Time{})
	require.NoError(t, err)

	_, breakdown, err := engine.Charge(auth.AuthorizationID, 1000, "SIG1", time.Now())
	require.NoError(t, err)
	require.Zero(t, breakdown.PlatformFee.FeeMicro, "expected zero fee when no platform fee attached")
}
