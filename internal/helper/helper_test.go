package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOKXInstID(t *testing.T) {
	cases := map[string]string{
		"BTC/USDT:USDT": "BTC-USDT-SWAP",
		"eth/usdt:usdt": "ETH-USDT-SWAP",
		"BTC/USDT":      "BTC-USDT",
		"SOL-USDT-SWAP": "SOL-USDT-SWAP",
	}
	for in, want := range cases {
		assert.Equal(t, want, OKXInstID(in), in)
	}
}

func TestOKXBar(t *testing.T) {
	bar, err := OKXBar("60m")
	require.NoError(t, err)
	assert.Equal(t, "1H", bar)

	bar, err = OKXBar("1m")
	require.NoError(t, err)
	assert.Equal(t, "1m", bar)

	_, err = OKXBar("7m")
	assert.Error(t, err)
}

func TestRoundToTick(t *testing.T) {
	assert.InDelta(t, 101.5, RoundDownToTick(101.537, 0.1), 1e-9)
	assert.InDelta(t, 101.6, RoundUpToTick(101.537, 0.1), 1e-9)
	assert.Equal(t, 3.3, RoundDownToTick(3.3, 0))
}

func TestTimeframeDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TimeframeDuration("1m"))
	assert.Equal(t, time.Hour, TimeframeDuration("candle1H"))
	assert.Equal(t, time.Duration(0), TimeframeDuration("weird"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "4m05s", FormatDuration(4*time.Minute+5*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}
