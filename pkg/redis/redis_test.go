package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/wuxing-quant/pkg/config"
)

type payload struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

func TestNew_Disabled(t *testing.T) {
	client, err := New(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.False(t, client.Enabled())

	cache := NewCache(client, "wx")
	var out payload
	found, err := cache.Get(context.Background(), "k", &out)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Set(context.Background(), "k", payload{}, TTLShort))
}

func TestCache_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	data, _ := json.Marshal(payload{Symbol: "AAPL", Close: 101.5})
	mock.ExpectGet("wx:bars:AAPL:2023-01-01:2024-01-01").SetVal(string(data))

	cache := NewCache(Wrap(rdb), "wx")
	var out payload
	found, err := cache.Get(context.Background(), BarsKey("AAPL", "2023-01-01", "2024-01-01"), &out)

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 101.5, out.Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_MissAndSet(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	value := payload{Symbol: "MSFT", Close: 300}
	data, _ := json.Marshal(value)

	mock.ExpectGet("wx:backtest:abc").RedisNil()
	mock.ExpectSet("wx:backtest:abc", data, TTLDaily).SetVal("OK")

	cache := NewCache(Wrap(rdb), "wx")
	var out payload
	found, err := cache.Get(context.Background(), BacktestKey("abc"), &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(context.Background(), BacktestKey("abc"), value, TTLDaily))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_CorruptedEntryIsDropped(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectGet("wx:signal:2024-01-02").SetVal("not json")
	mock.ExpectDel("wx:signal:2024-01-02").SetVal(1)

	cache := NewCache(Wrap(rdb), "wx")
	var out payload
	found, err := cache.Get(context.Background(), SignalKey("2024-01-02"), &out)

	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "bars:AAPL:2023-01-01:2023-12-31", BarsKey("AAPL", "2023-01-01", "2023-12-31"))
	assert.Equal(t, "backtest:deadbeef", BacktestKey("deadbeef"))
	assert.Equal(t, "signal:2024-06-15", SignalKey("2024-06-15"))
	assert.Equal(t, 24*time.Hour, TTLDaily)
}
