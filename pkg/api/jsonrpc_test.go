package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/datastore"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/synth"
)

func newTestServer(t *testing.T) (*JSONRPCServer, *synth.StaticOracle) {
	t.Helper()
	level, _ := log.ToLevel("error")
	logger := log.NewTestLogger(level)
	store := datastore.New(datastore.NewMemDB())
	oracle := synth.NewStaticOracle()
	engine := synth.NewEngine(store, oracle, logger)
	server := NewJSONRPCServer(engine, logger)
	server.SetOracle(oracle)
	return server, oracle
}

func rpcCall(t *testing.T, server *JSONRPCServer, body string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest("POST", "/rpc", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestJSONRPCServer_MarketLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	resp := rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_createMarket","params":{"marketToken":"ETH-USD","indexToken":"ETH","longToken":"WETH","shortToken":"USDC"},"id":1}`)
	assert.Nil(t, resp["error"])

	resp = rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_getMarket","params":{"market":"ETH-USD"},"id":2}`)
	require.Nil(t, resp["error"])
	market := resp["result"].(map[string]interface{})
	assert.Equal(t, "ETH", market["indexToken"])

	resp = rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_listMarkets","params":{},"id":3}`)
	require.Nil(t, resp["error"])
	markets := resp["result"].([]interface{})
	assert.Len(t, markets, 1)

	// Duplicate creation surfaces the engine error
	resp = rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_createMarket","params":{"marketToken":"ETH-USD","indexToken":"ETH","longToken":"WETH","shortToken":"USDC"},"id":4}`)
	require.NotNil(t, resp["error"])
}

func TestJSONRPCServer_PriceAdministration(t *testing.T) {
	server, oracle := newTestServer(t)

	resp := rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_setPrice","params":{"token":"ETH","spot":"5000"},"id":1}`)
	require.Nil(t, resp["error"])

	price, err := oracle.GetPrice("ETH")
	require.NoError(t, err)
	assert.Equal(t, "5000", price.Min.String())
	assert.Equal(t, "5000", price.Max.String())

	resp = rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_getPrice","params":{"token":"ETH"},"id":2}`)
	require.Nil(t, resp["error"])
}

func TestJSONRPCServer_ImpactPools(t *testing.T) {
	server, _ := newTestServer(t)

	rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_createMarket","params":{"marketToken":"ETH-USD","indexToken":"ETH","longToken":"WETH","shortToken":"USDC"},"id":1}`)

	resp := rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_getImpactPools","params":{"market":"ETH-USD"},"id":2}`)
	require.Nil(t, resp["error"])
	pools := resp["result"].(map[string]interface{})
	assert.Equal(t, "ETH-USD", pools["market"])
}

func TestJSONRPCServer_ErrorCodes(t *testing.T) {
	server, _ := newTestServer(t)

	testCases := []struct {
		name         string
		reqBody      string
		expectedCode float64
	}{
		{"ParseError", `{invalid json`, -32700},
		{"InvalidRequest", `{"jsonrpc":"1.0","method":"synth_ping","id":1}`, -32600},
		{"MethodNotFound", `{"jsonrpc":"2.0","method":"synth_bogus","id":1}`, -32601},
		{"InvalidParams", `{"jsonrpc":"2.0","method":"synth_getMarket","params":"x","id":1}`, -32602},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := rpcCall(t, server, tc.reqBody)
			errObj, ok := resp["error"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, tc.expectedCode, errObj["code"])
		})
	}
}

func TestJSONRPCServer_PingAndHealth(t *testing.T) {
	server, _ := newTestServer(t)

	resp := rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_ping","params":{},"id":1}`)
	assert.Equal(t, "pong", resp["result"])

	resp = rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_health","params":{},"id":2}`)
	require.Nil(t, resp["error"])
	health := resp["result"].(map[string]interface{})
	assert.Equal(t, "ok", health["status"])
}

func TestJSONRPCServer_OracleDisabled(t *testing.T) {
	level, _ := log.ToLevel("error")
	logger := log.NewTestLogger(level)
	store := datastore.New(datastore.NewMemDB())
	engine := synth.NewEngine(store, synth.NewStaticOracle(), logger)
	server := NewJSONRPCServer(engine, logger)

	resp := rpcCall(t, server, `{"jsonrpc":"2.0","method":"synth_setPrice","params":{"token":"ETH","spot":"5000"},"id":1}`)
	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(-32601), errObj["code"])
}
