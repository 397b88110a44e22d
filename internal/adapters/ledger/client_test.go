package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finbridge/ledger-rest/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LedgerConfig{
		RPCURL:         srv.URL,
		RequestTimeout: 2 * time.Second,
	}, NewGate(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func rpcResponse(result map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"result": result})
	}
}

func TestNextSequence(t *testing.T) {
	var gotMethod string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotMethod = req.Method
		rpcResponse(map[string]interface{}{
			"status":       "success",
			"account_data": map[string]interface{}{"Sequence": 42},
		})(w, r)
	})

	seq, err := client.NextSequence(context.Background(), "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), seq)
	assert.Equal(t, "account_info", gotMethod)
}

func TestNodeErrorBecomesLedgerError(t *testing.T) {
	client := newTestClient(t, rpcResponse(map[string]interface{}{
		"status":        "error",
		"error":         "actNotFound",
		"error_message": "Account not found.",
	}))

	_, err := client.NextSequence(context.Background(), "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh")
	require.Error(t, err)

	var lerr *LedgerError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "actNotFound", lerr.Code)
	assert.False(t, IsTransient(err))
}

func TestSubmitClassification(t *testing.T) {
	tests := []struct {
		engineResult string
		wantAccepted bool
		wantErr      bool
		transient    bool
	}{
		{engineResult: "tesSUCCESS", wantAccepted: true},
		{engineResult: "terQUEUED", wantAccepted: true},
		{engineResult: "telINSUF_FEE_P", wantErr: true, transient: true},
		{engineResult: "tecUNFUNDED_PAYMENT", wantAccepted: false},
		{engineResult: "temBAD_AMOUNT", wantAccepted: false},
	}

	for _, tc := range tests {
		t.Run(tc.engineResult, func(t *testing.T) {
			client := newTestClient(t, rpcResponse(map[string]interface{}{
				"status":                "success",
				"engine_result":         tc.engineResult,
				"engine_result_message": "message",
				"tx_json":               map[string]interface{}{"hash": "HASH123"},
			}))

			res, err := client.Submit(context.Background(), "SIGNEDBLOB")
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.transient, IsTransient(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantAccepted, res.Accepted)
			assert.Equal(t, tc.engineResult, res.EngineResult)
			assert.Equal(t, "HASH123", res.Hash)
		})
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CurrentLedger(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestAccountTransactions(t *testing.T) {
	client := newTestClient(t, rpcResponse(map[string]interface{}{
		"status": "success",
		"transactions": []map[string]interface{}{
			{
				"tx":           map[string]interface{}{"hash": "HASH123"},
				"meta":         map[string]interface{}{"TransactionResult": "tesSUCCESS"},
				"validated":    true,
				"ledger_index": 1003,
			},
			{
				"tx":           map[string]interface{}{"hash": "HASH456"},
				"meta":         map[string]interface{}{"TransactionResult": "tecPATH_DRY"},
				"validated":    true,
				"ledger_index": 1004,
			},
		},
	}))

	txs, err := client.AccountTransactions(context.Background(), "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", 1000)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Succeeded)
	assert.Equal(t, uint32(1003), txs[0].LedgerIndex)
	assert.False(t, txs[1].Succeeded)
}

func TestSign(t *testing.T) {
	var offline bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params []struct {
				Offline bool `json:"offline"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		offline = req.Params[0].Offline
		rpcResponse(map[string]interface{}{
			"status":  "success",
			"tx_blob": "SIGNEDBLOB",
			"tx_json": map[string]interface{}{"hash": "HASH123"},
		})(w, r)
	})

	blob, hash, err := client.Sign(context.Background(), nil, "shhh")
	require.NoError(t, err)
	assert.Equal(t, "SIGNEDBLOB", blob)
	assert.Equal(t, "HASH123", hash)
	assert.True(t, offline)
}

func TestClassifyEngineResult(t *testing.T) {
	assert.Equal(t, ClassQueued, ClassifyEngineResult("tesSUCCESS"))
	assert.Equal(t, ClassQueued, ClassifyEngineResult("terPRE_SEQ"))
	assert.Equal(t, ClassRetry, ClassifyEngineResult("telCAN_NOT_QUEUE"))
	assert.Equal(t, ClassRejected, ClassifyEngineResult("temBAD_FEE"))
	assert.Equal(t, ClassRejected, ClassifyEngineResult("tefPAST_SEQ"))
	assert.Equal(t, ClassRejected, ClassifyEngineResult("tecUNFUNDED_PAYMENT"))
}

func TestGateTransitions(t *testing.T) {
	gate := NewGate()
	assert.False(t, gate.IsConnected())
	assert.True(t, gate.SetConnected(true))
	assert.False(t, gate.SetConnected(true))
	assert.True(t, gate.IsConnected())
	assert.True(t, gate.SetConnected(false))
	assert.False(t, gate.IsConnected())
}
