package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinance(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Binance("btc/usdt"))
	assert.Equal(t, "ETHUSDT", Binance("ETH/USDT:USDT"))
	assert.Equal(t, "SOLUSDT", Binance(" solusdt "))
	assert.Equal(t, "", Binance("USDT"))
	assert.False(t, IsValid("foo"))
}

func TestNormalizeList(t *testing.T) {
	out, invalid := NormalizeList([]string{"BTC/USDT", "btcusdt", "", "ETHUSDT", "???"})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, out)
	assert.Equal(t, []string{"???"}, invalid)
}
