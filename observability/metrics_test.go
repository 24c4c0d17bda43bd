package observability

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	stakeerrors "stakeledger/core/errors"
	"stakeledger/core/events"
)

func TestOutcomeLabels(t *testing.T) {
	cases := map[error]string{
		nil:                          "success",
		stakeerrors.ErrInvalidAmount: "invalid_amount",
		fmt.Errorf("wrapped: %w", stakeerrors.ErrInsufficientBalance): "insufficient_balance",
		stakeerrors.ErrInsufficientTreasuryFunds:                      "insufficient_treasury",
		stakeerrors.ErrInvalidAuthorization:                           "invalid_authorization",
		stakeerrors.ErrNotAuthorized:                                  "not_authorized",
		stakeerrors.ErrUnknownAccount:                                 "unknown_account",
		stakeerrors.ErrInvalidIdentity:                                "invalid_identity",
		errors.New("disk on fire"):                                    "error",
	}
	for err, want := range cases {
		if got := Outcome(err); got != want {
			t.Fatalf("Outcome(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestStakingMetricsRecord(t *testing.T) {
	m := Staking()
	before := testutil.ToFloat64(m.operations.WithLabelValues("stake", "success"))
	m.ObserveOperation("stake", nil, 3*time.Millisecond)
	if got := testutil.ToFloat64(m.operations.WithLabelValues("stake", "success")); got != before+1 {
		t.Fatalf("operations counter = %v, want %v", got, before+1)
	}
	m.ObserveTotals(big.NewInt(55), big.NewInt(995))
	if got := testutil.ToFloat64(m.staked); got != 55 {
		t.Fatalf("staked gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.treasury); got != 995 {
		t.Fatalf("treasury gauge = %v", got)
	}
	var nilMetrics *StakingMetrics
	nilMetrics.ObserveOperation("stake", nil, 0)
}

func TestEventMetricsCountsTypes(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.committed.WithLabelValues(events.TypeStaked))
	m.Emit(events.Staked{Amount: big.NewInt(1)})
	if got := testutil.ToFloat64(m.committed.WithLabelValues(events.TypeStaked)); got != before+1 {
		t.Fatalf("committed counter = %v, want %v", got, before+1)
	}
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.errors.WithLabelValues("staking", "unstake", "403"))
	m.Observe("staking", "unstake", 403, time.Millisecond)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("staking", "unstake", "403")); got != before+1 {
		t.Fatalf("error counter = %v, want %v", got, before+1)
	}
}
