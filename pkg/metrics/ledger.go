package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics tracks coin movement through the loyalty ledger.
type LedgerMetrics struct {
	earned    prometheus.Counter
	redeemed  prometheus.Counter
	expired   prometheus.Counter
	reversed  prometheus.Counter
	conflicts prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	earned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coins_earned_total",
		Help: "Coins credited to balances by completed orders.",
	})
	redeemed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coins_redeemed_total",
		Help: "Coins consumed by successful redemptions.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coins_expired_total",
		Help: "Coins forfeited by the expiry sweep.",
	})
	reversed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coins_reversed_total",
		Help: "Coins clawed back from earned lots after returns.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coin_txn_conflicts_total",
		Help: "Ledger transactions aborted by lock contention.",
	})
	reg.MustRegister(earned, redeemed, expired, reversed, conflicts)
	return &LedgerMetrics{
		earned:    earned,
		redeemed:  redeemed,
		expired:   expired,
		reversed:  reversed,
		conflicts: conflicts,
	}
}

// AddEarned records coins credited by a completion.
func (m *LedgerMetrics) AddEarned(coins int) {
	if m == nil || m.earned == nil {
		return
	}
	m.earned.Add(float64(coins))
}

// AddRedeemed records coins consumed by a redemption.
func (m *LedgerMetrics) AddRedeemed(coins int) {
	if m == nil || m.redeemed == nil {
		return
	}
	m.redeemed.Add(float64(coins))
}

// AddExpired records coins forfeited by the sweeper.
func (m *LedgerMetrics) AddExpired(coins int) {
	if m == nil || m.expired == nil {
		return
	}
	m.expired.Add(float64(coins))
}

// AddReversed records coins clawed back from an earned lot.
func (m *LedgerMetrics) AddReversed(coins int) {
	if m == nil || m.reversed == nil {
		return
	}
	m.reversed.Add(float64(coins))
}

// IncConflict records a transaction aborted by lock contention.
func (m *LedgerMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}
