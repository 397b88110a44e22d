// Package ledger implements the ledger-network capability over the
// node's JSON-RPC interface, plus the connection gate fed by a
// connectivity probe. Signing and the wire protocol stay the node's
// responsibility; this adapter only shuttles requests and classifies
// failures.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/finbridge/ledger-rest/internal/config"
	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
)

type Client struct {
	rpcURL     string
	httpClient *http.Client
	gate       *Gate
	logger     *slog.Logger
}

func NewClient(cfg config.LedgerConfig, gate *Gate, logger *slog.Logger) *Client {
	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		gate:   gate,
		logger: logger,
	}
}

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// call posts one JSON-RPC request and decodes result into out. Node
// errors come back as LedgerError carrying the node's error token;
// transport failures carry the "transport" code.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: []interface{}{params}})
	if err != nil {
		return fmt.Errorf("error marshalling %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &LedgerError{Code: "transport", Message: method + " request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &LedgerError{
			Code:    "transport",
			Message: fmt.Sprintf("%s returned status %d: %s", method, resp.StatusCode, string(raw)),
		}
	}

	var envelope rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &LedgerError{Code: "transport", Message: "error decoding " + method + " response", Err: err}
	}

	var status rpcStatus
	if err := json.Unmarshal(envelope.Result, &status); err != nil {
		return &LedgerError{Code: "transport", Message: "malformed " + method + " result", Err: err}
	}
	if status.Status == "error" {
		return &LedgerError{Code: status.Error, Message: status.ErrorMessage}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return &LedgerError{Code: "transport", Message: "error decoding " + method + " result", Err: err}
		}
	}
	return nil
}

func (c *Client) NextSequence(ctx context.Context, account string) (uint32, error) {
	var result struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}
	params := map[string]interface{}{
		"account":      account,
		"ledger_index": "current",
	}
	if err := c.call(ctx, "account_info", params, &result); err != nil {
		return 0, err
	}
	return result.AccountData.Sequence, nil
}

func (c *Client) CurrentLedger(ctx context.Context) (uint32, error) {
	var result struct {
		LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	}
	if err := c.call(ctx, "ledger_current", map[string]interface{}{}, &result); err != nil {
		return 0, err
	}
	return result.LedgerCurrentIndex, nil
}

func (c *Client) BaseFee(ctx context.Context) (string, error) {
	var result struct {
		Drops struct {
			BaseFee string `json:"base_fee"`
		} `json:"drops"`
	}
	if err := c.call(ctx, "fee", map[string]interface{}{}, &result); err != nil {
		return "", err
	}
	return result.Drops.BaseFee, nil
}

func (c *Client) Sign(ctx context.Context, tx *domain.Transaction, secret string) (string, string, error) {
	var result struct {
		TxBlob string `json:"tx_blob"`
		TxJSON struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}
	params := map[string]interface{}{
		"tx_json": tx,
		"secret":  secret,
		"offline": true,
	}
	if err := c.call(ctx, "sign", params, &result); err != nil {
		return "", "", err
	}
	return result.TxBlob, result.TxJSON.Hash, nil
}

func (c *Client) Submit(ctx context.Context, blob string) (*ports.SubmitResult, error) {
	var result struct {
		EngineResult        string `json:"engine_result"`
		EngineResultMessage string `json:"engine_result_message"`
		TxJSON              struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}
	if err := c.call(ctx, "submit", map[string]interface{}{"tx_blob": blob}, &result); err != nil {
		return nil, err
	}

	switch ClassifyEngineResult(result.EngineResult) {
	case ClassQueued:
		return &ports.SubmitResult{
			Accepted:      true,
			EngineResult:  result.EngineResult,
			EngineMessage: result.EngineResultMessage,
			Hash:          result.TxJSON.Hash,
		}, nil
	case ClassRetry:
		return nil, &LedgerError{Code: "tooBusy", Message: result.EngineResultMessage}
	default:
		return &ports.SubmitResult{
			Accepted:      false,
			EngineResult:  result.EngineResult,
			EngineMessage: result.EngineResultMessage,
			Hash:          result.TxJSON.Hash,
		}, nil
	}
}

func (c *Client) AccountTransactions(ctx context.Context, account string, sinceLedger uint32) ([]ports.AccountTx, error) {
	var result struct {
		Transactions []struct {
			Tx struct {
				Hash string `json:"hash"`
			} `json:"tx"`
			Meta struct {
				TransactionResult string `json:"TransactionResult"`
			} `json:"meta"`
			Validated   bool   `json:"validated"`
			LedgerIndex uint32 `json:"ledger_index"`
		} `json:"transactions"`
	}
	params := map[string]interface{}{
		"account":          account,
		"ledger_index_min": sinceLedger,
		"ledger_index_max": -1,
	}
	if err := c.call(ctx, "account_tx", params, &result); err != nil {
		return nil, err
	}

	txs := make([]ports.AccountTx, 0, len(result.Transactions))
	for _, t := range result.Transactions {
		txs = append(txs, ports.AccountTx{
			Hash:        t.Tx.Hash,
			LedgerIndex: t.LedgerIndex,
			Validated:   t.Validated,
			Succeeded:   t.Meta.TransactionResult == "tesSUCCESS",
		})
	}
	return txs, nil
}

func (c *Client) FindPaths(ctx context.Context, source, destination string, amount domain.Amount) (json.RawMessage, error) {
	var result struct {
		Alternatives json.RawMessage `json:"alternatives"`
	}
	var destAmount interface{} = amount
	if amount.IsNative() {
		// Native amounts go over the wire as a drops string.
		destAmount = amount.Value
	}
	params := map[string]interface{}{
		"source_account":      source,
		"destination_account": destination,
		"destination_amount":  destAmount,
	}
	if err := c.call(ctx, "ripple_path_find", params, &result); err != nil {
		return nil, err
	}
	return result.Alternatives, nil
}

func (c *Client) ServerInfo(ctx context.Context) (json.RawMessage, error) {
	var result struct {
		Info json.RawMessage `json:"info"`
	}
	if err := c.call(ctx, "server_info", map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	return result.Info, nil
}

// RunConnectivityProbe polls the node and feeds the gate until ctx is
// done. The gate is the one source of reachability truth for the rest
// of the service.
func (c *Client) RunConnectivityProbe(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

func (c *Client) probe(ctx context.Context) {
	_, err := c.ServerInfo(ctx)
	up := err == nil
	if c.gate.SetConnected(up) {
		if up {
			c.logger.Info("ledger node connected", "url", c.rpcURL)
		} else {
			c.logger.Warn("ledger node unreachable", "url", c.rpcURL, "error", err)
		}
	}
}
