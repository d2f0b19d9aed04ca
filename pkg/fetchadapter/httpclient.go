package fetchadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/riskengine/walletrisk/pkg/chain"
)

// maxBodyBytes caps response bodies the same way the teacher's
// scanner.getJSON does, defending against a misbehaving remote.
const maxBodyBytes = 10 << 20

// EtherscanClient is the optional HTTP RemoteClient implementation: a
// thin wrapper around an Etherscan-v2-style unified multi-chain API
// (spec.md §6 "Implementers may provide an HTTP wrapper around the
// remote blockchain API"), grounded in the teacher's
// pkg/scanner/scanner.go etherscanList/getJSON pagination idiom.
type EtherscanClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewEtherscanClient builds a client whose HTTP timeout is callTimeout;
// no default is applied here.
func NewEtherscanClient(baseURL, apiKey string, callTimeout time.Duration) *EtherscanClient {
	return &EtherscanClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: callTimeout},
	}
}

var kindToAction = map[Kind]string{
	KindNormal:   "txlist",
	KindInternal: "txlistinternal",
	KindToken:    "tokentx",
}

type explorerEnvelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Result  json.RawMessage   `json:"result"`
}

type explorerTx struct {
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	TransactionIndex string `json:"transactionIndex"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	GasUsed         string `json:"gasUsed"`
	GasPrice        string `json:"gasPrice"`
	Input           string `json:"input"`
	IsError         string `json:"isError"`
	TxReceiptStatus string `json:"txreceipt_status"`
	ContractAddress string `json:"contractAddress"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenName       string `json:"tokenName"`
	TokenDecimal    string `json:"tokenDecimal"`
}

// FetchRaw implements RemoteClient.
func (c *EtherscanClient) FetchRaw(ctx context.Context, address chain.Address, chainID int64, kind Kind, maxResults int) ([]Transaction, error) {
	action, ok := kindToAction[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}

	params := url.Values{}
	params.Set("chainid", strconv.FormatInt(chainID, 10))
	params.Set("module", "account")
	params.Set("action", action)
	params.Set("address", string(address))
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(maxResults))
	params.Set("sort", "desc")
	params.Set("apikey", c.APIKey)

	body, err := c.get(ctx, c.BaseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var env explorerEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed explorer payload: %w", err)
	}
	var raw []explorerTx
	if err := json.Unmarshal(env.Result, &raw); err != nil {
		// an empty/"No transactions found" result decodes to a
		// string here rather than an array; that's a legitimate
		// empty result, not a malformed payload.
		return nil, nil
	}

	out := make([]Transaction, 0, len(raw))
	for _, r := range raw {
		t := Transaction{
			Hash:          r.Hash,
			Block:         parseInt64(r.BlockNumber),
			TxIndex:       int(parseInt64(r.TransactionIndex)),
			Timestamp:     parseInt64(r.TimeStamp),
			From:          chain.Address(normalizeAddr(r.From)),
			To:            chain.Address(normalizeAddr(r.To)),
			Value:         parseFloat(r.Value),
			GasUsed:       parseFloat(r.GasUsed),
			GasPrice:      parseFloat(r.GasPrice),
			Input:         r.Input,
			IsError:       r.IsError == "1",
			ReceiptStatus: r.TxReceiptStatus,
		}
		if kind == KindToken {
			t.Contract = chain.Address(normalizeAddr(r.ContractAddress))
			t.TokenSymbol = r.TokenSymbol
			t.TokenName = r.TokenName
			t.TokenDecimals = int(parseInt64(r.TokenDecimal))
		}
		out = append(out, t)
	}
	return out, nil
}

// FetchBalance implements RemoteClient.
func (c *EtherscanClient) FetchBalance(ctx context.Context, address chain.Address, chainID int64) (float64, error) {
	params := url.Values{}
	params.Set("chainid", strconv.FormatInt(chainID, 10))
	params.Set("module", "account")
	params.Set("action", "balance")
	params.Set("address", string(address))
	params.Set("tag", "latest")
	params.Set("apikey", c.APIKey)

	body, err := c.get(ctx, c.BaseURL+"?"+params.Encode())
	if err != nil {
		return 0, err
	}
	var env struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, fmt.Errorf("malformed balance payload: %w", err)
	}
	return parseFloat(env.Result) / 1e18, nil
}

func (c *EtherscanClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("remote returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func normalizeAddr(s string) string {
	a, err := chain.ParseAddress(s)
	if err != nil {
		return ""
	}
	return string(a)
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
