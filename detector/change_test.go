package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdBoundaryIsInclusive(t *testing.T) {
	old := &Snapshot{Aum: 0, InvestAmt: 1000}

	alerts := Check(Horizon5m, 1050, 0, old, DefaultThreshold)
	require.Len(t, alerts, 1)
	assert.Equal(t, KindTotal, alerts[0].Kind)
	assert.InDelta(t, 0.05, alerts[0].Percent, 1e-12)
	assert.Equal(t, Up, alerts[0].Direction())

	assert.Empty(t, Check(Horizon5m, 1049.99, 0, old, DefaultThreshold))
}

func TestNilHistoryIsNoop(t *testing.T) {
	assert.Nil(t, Check(Horizon24h, 1_000_000, 1_000_000, nil, DefaultThreshold))
}

func TestZeroBaseIsSkipped(t *testing.T) {
	old := &Snapshot{}
	assert.Empty(t, Check(Horizon1h, 500, 500, old, DefaultThreshold))

	// 只有自有资产时不检查规模
	old = &Snapshot{InvestAmt: 100}
	alerts := Check(Horizon1h, 50, 10, old, DefaultThreshold)
	require.Len(t, alerts, 1)
	assert.Equal(t, KindTotal, alerts[0].Kind)
	assert.Equal(t, Down, alerts[0].Direction())
}

func TestTotalAndScaleAlerts(t *testing.T) {
	// 总资产 1000+4000 -> 6000，规模 1000 -> 2000
	old := &Snapshot{Aum: 1000, InvestAmt: 4000}
	alerts := Check(Horizon1h, 6000, 2000, old, DefaultThreshold)
	require.Len(t, alerts, 2)

	assert.Equal(t, KindTotal, alerts[0].Kind)
	assert.Equal(t, 5000.0, alerts[0].OldValue)
	assert.Equal(t, 6000.0, alerts[0].NewValue)
	assert.InDelta(t, 0.2, alerts[0].Percent, 1e-12)

	assert.Equal(t, KindScale, alerts[1].Kind)
	assert.InDelta(t, 1.0, alerts[1].Percent, 1e-12)
	assert.Equal(t, Horizon1h, alerts[1].Horizon)
}

func TestLeadPnlCountsTowardsOldTotal(t *testing.T) {
	old := &Snapshot{Aum: 500, InvestAmt: 400, LeadPnl: 100}
	assert.Equal(t, 1000.0, old.Total())
	assert.Empty(t, Check(Horizon5m, 1000, 500, old, DefaultThreshold))
}

func TestCustomThreshold(t *testing.T) {
	old := &Snapshot{Aum: 1000}
	assert.Empty(t, Check(Horizon5m, 1080, 1080, old, 0.1))
	assert.Len(t, Check(Horizon5m, 1100, 1100, old, 0.1), 2)
}

func TestHorizons(t *testing.T) {
	require.Len(t, Horizons, 3)
	assert.Equal(t, []int{1, 12, 288}, []int{Horizons[0].Buckets, Horizons[1].Buckets, Horizons[2].Buckets})
	assert.Equal(t, 24*time.Hour, Horizon24h.Lookback(5*time.Minute))
}
