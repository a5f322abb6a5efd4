package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tezos-gateway/internal/michelson"
	"tezos-gateway/internal/schema"
	"tezos-gateway/pkg/crypto_util"
	"tezos-gateway/pkg/errno"
)

const headPath = "/chains/main/blocks/head"

var errNotFound = errors.New("chain: resource not found")

// RPCError is a non-2xx node answer. IDs holds the protocol error ids when
// the node returned its usual error array.
type RPCError struct {
	Status int
	IDs    []string
	Body   string
}

func (e *RPCError) Error() string {
	if len(e.IDs) > 0 {
		return fmt.Sprintf("node rpc status %d: %s", e.Status, strings.Join(e.IDs, ", "))
	}
	return fmt.Sprintf("node rpc status %d: %s", e.Status, e.Body)
}

type rpcErrorItem struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// RPCClient is a Client over the node's HTTP RPC.
type RPCClient struct {
	httpClient *http.Client
	baseURL    string
}

var _ Client = (*RPCClient)(nil)

func NewRPCClient(baseURL string, timeout time.Duration) *RPCClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RPCClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *RPCClient) URL() string { return c.baseURL }

func (c *RPCClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		rpcErr := &RPCError{Status: resp.StatusCode, Body: string(respBody)}
		var items []rpcErrorItem
		if json.Unmarshal(respBody, &items) == nil {
			for _, it := range items {
				rpcErr.IDs = append(rpcErr.IDs, it.ID)
			}
		}
		if rejected(rpcErr.IDs) {
			return errno.ErrOperationRejected.Withf("operation rejected: %s", strings.Join(rpcErr.IDs, ", "))
		}
		return rpcErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// rejected reports whether the ids come from the protocol validating the
// operation rather than from the node being unhealthy.
func rejected(ids []string) bool {
	for _, id := range ids {
		if strings.HasPrefix(id, "proto.") {
			return true
		}
	}
	return false
}

func contractPath(address, suffix string) string {
	return headPath + "/context/contracts/" + url.PathEscape(address) + suffix
}

func (c *RPCClient) GetCounter(ctx context.Context, address string) (int64, bool, error) {
	var raw string
	err := c.do(ctx, http.MethodGet, contractPath(address, "/counter"), nil, &raw)
	if errors.Is(err, errNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse counter %q: %w", raw, err)
	}
	return n, true, nil
}

func (c *RPCClient) GetManagerKey(ctx context.Context, address string) (string, error) {
	var key *string
	err := c.do(ctx, http.MethodGet, contractPath(address, "/manager_key"), nil, &key)
	if errors.Is(err, errNotFound) {
		return "", errno.ErrAddressNotFound.Withf("address %s not found", address)
	}
	if err != nil || key == nil {
		return "", err
	}
	return *key, nil
}

func (c *RPCClient) GetEntrypoints(ctx context.Context, contract string) (map[string]*schema.Node, error) {
	var resp struct {
		Entrypoints map[string]michelson.Node `json:"entrypoints"`
	}
	err := c.do(ctx, http.MethodGet, contractPath(contract, "/entrypoints"), nil, &resp)
	if errors.Is(err, errNotFound) {
		return nil, errno.ErrContractNotFound.Withf("contract %s not found", contract)
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]*schema.Node, len(resp.Entrypoints)+1)
	for name, t := range resp.Entrypoints {
		s, err := michelson.ParseType(t)
		if err != nil {
			return nil, fmt.Errorf("entry point %s: %w", name, err)
		}
		out[name] = s
	}
	if _, ok := out["default"]; !ok {
		s, err := c.parameterType(ctx, contract)
		if err != nil {
			return nil, err
		}
		out["default"] = s
	}
	return out, nil
}

// parameterType reads the root parameter type from the contract script.
func (c *RPCClient) parameterType(ctx context.Context, contract string) (*schema.Node, error) {
	var script struct {
		Code []michelson.Node `json:"code"`
	}
	if err := c.do(ctx, http.MethodGet, contractPath(contract, "/script"), nil, &script); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, errno.ErrContractNotFound.Withf("contract %s has no script", contract)
		}
		return nil, err
	}
	for _, section := range script.Code {
		if section.Prim == "parameter" && len(section.Args) == 1 {
			return michelson.ParseType(section.Args[0])
		}
	}
	return nil, fmt.Errorf("contract %s: script has no parameter section", contract)
}

func (c *RPCClient) GetBlockHeader(ctx context.Context) (*BlockHeader, error) {
	var h BlockHeader
	if err := c.do(ctx, http.MethodGet, headPath+"/header", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *RPCClient) EstimateBatch(ctx context.Context, source, publicKey string, contents []OperationContent) ([]Estimation, error) {
	counter, ok, err := c.GetCounter(ctx, source)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errno.ErrAddressNotFound.Withf("address %s not found", source)
	}

	batch := make([]OperationContent, 0, len(contents)+1)
	if publicKey != "" {
		key, err := c.GetManagerKey(ctx, source)
		if err != nil {
			return nil, err
		}
		if key == "" {
			batch = append(batch, OperationContent{Kind: KindReveal, PublicKey: publicKey})
		}
	}
	batch = append(batch, contents...)
	for i := range batch {
		batch[i].Source = source
		batch[i].Counter = strconv.FormatInt(counter+int64(i)+1, 10)
	}
	return c.simulate(ctx, batch)
}

func (c *RPCClient) EstimateReveal(ctx context.Context, address, publicKey string) (*Estimation, error) {
	key, err := c.GetManagerKey(ctx, address)
	if err != nil {
		return nil, err
	}
	if key != "" {
		return nil, nil
	}
	pkh, err := crypto_util.PublicKeyHash(publicKey)
	if err != nil {
		return nil, err
	}
	if pkh != address {
		return nil, fmt.Errorf("public key %s belongs to %s, not %s", publicKey, pkh, address)
	}
	counter, ok, err := c.GetCounter(ctx, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("address %s is not activated", address)
	}

	ests, err := c.simulate(ctx, []OperationContent{{
		Kind:      KindReveal,
		Source:    address,
		PublicKey: publicKey,
		Counter:   strconv.FormatInt(counter+1, 10),
	}})
	if err != nil {
		return nil, err
	}
	return &ests[0], nil
}

type operationResult struct {
	Status                       string         `json:"status"`
	ConsumedMilligas             string         `json:"consumed_milligas"`
	PaidStorageSizeDiff          string         `json:"paid_storage_size_diff"`
	AllocatedDestinationContract bool           `json:"allocated_destination_contract"`
	Errors                       []rpcErrorItem `json:"errors"`
}

type contentResult struct {
	Kind     string `json:"kind"`
	Metadata struct {
		OperationResult          operationResult `json:"operation_result"`
		InternalOperationResults []struct {
			Result operationResult `json:"result"`
		} `json:"internal_operation_results"`
	} `json:"metadata"`
}

type applyResult struct {
	Contents []contentResult `json:"contents"`
}

func (r contentResult) check() error {
	results := []operationResult{r.Metadata.OperationResult}
	for _, in := range r.Metadata.InternalOperationResults {
		results = append(results, in.Result)
	}
	var ids []string
	for _, res := range results {
		if res.Status != "" && res.Status != "applied" {
			for _, e := range res.Errors {
				ids = append(ids, e.ID)
			}
			if len(res.Errors) == 0 {
				ids = append(ids, res.Status)
			}
		}
	}
	if len(ids) > 0 {
		return errno.ErrOperationRejected.Withf("%s rejected: %s", r.Kind, strings.Join(ids, ", "))
	}
	return nil
}

func (r contentResult) usage() (milligas, storage int64, allocated bool) {
	add := func(res operationResult) {
		m, _ := strconv.ParseInt(res.ConsumedMilligas, 10, 64)
		s, _ := strconv.ParseInt(res.PaidStorageSizeDiff, 10, 64)
		milligas += m
		storage += s
		allocated = allocated || res.AllocatedDestinationContract
	}
	add(r.Metadata.OperationResult)
	for _, in := range r.Metadata.InternalOperationResults {
		add(in.Result)
	}
	return milligas, storage, allocated
}

// simulate runs contents with maximal limits and turns the consumption into
// estimations. Counters and sources must already be set.
func (c *RPCClient) simulate(ctx context.Context, contents []OperationContent) ([]Estimation, error) {
	header, err := c.GetBlockHeader(ctx)
	if err != nil {
		return nil, err
	}

	sim := make([]OperationContent, len(contents))
	gasLimit := strconv.FormatInt(simulationGasLimit(len(contents)), 10)
	for i, op := range contents {
		op.Fee = "0"
		op.GasLimit = gasLimit
		op.StorageLimit = strconv.Itoa(HardStorageLimitPerOperation)
		if op.Kind == KindTransaction && op.Amount == "" {
			op.Amount = "0"
		}
		sim[i] = op
	}

	req := map[string]any{
		"operation": map[string]any{
			"branch":    header.Hash,
			"contents":  sim,
			"signature": crypto_util.ZeroSignature(),
		},
		"chain_id": header.ChainID,
	}
	var res applyResult
	if err := c.do(ctx, http.MethodPost, headPath+"/helpers/scripts/run_operation", req, &res); err != nil {
		return nil, err
	}
	if len(res.Contents) != len(sim) {
		return nil, fmt.Errorf("run_operation returned %d results for %d contents", len(res.Contents), len(sim))
	}

	forged, err := c.Forge(ctx, header.Hash, sim)
	if err != nil {
		return nil, err
	}
	opSize := ceilDiv(int64(len(forged)/2+SignatureSize), int64(len(sim)))

	out := make([]Estimation, len(sim))
	for i, r := range res.Contents {
		if err := r.check(); err != nil {
			return nil, err
		}
		milligas, storage, allocated := r.usage()
		counter, _ := strconv.ParseInt(sim[i].Counter, 10, 64)
		out[i] = NewEstimation(sim[i].Kind, counter, milligas, storage, allocated, opSize)
	}
	return out, nil
}

func (c *RPCClient) Forge(ctx context.Context, branch string, contents []OperationContent) (string, error) {
	var forged string
	req := map[string]any{"branch": branch, "contents": contents}
	if err := c.do(ctx, http.MethodPost, headPath+"/helpers/forge/operations", req, &forged); err != nil {
		return "", err
	}
	return forged, nil
}

func (c *RPCClient) Preapply(ctx context.Context, branch string, contents []OperationContent, signature string) error {
	header, err := c.GetBlockHeader(ctx)
	if err != nil {
		return err
	}
	req := []map[string]any{{
		"protocol":  header.Protocol,
		"branch":    branch,
		"contents":  contents,
		"signature": signature,
	}}
	var res []applyResult
	if err := c.do(ctx, http.MethodPost, headPath+"/helpers/preapply/operations", req, &res); err != nil {
		return err
	}
	for _, op := range res {
		for _, r := range op.Contents {
			if err := r.check(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *RPCClient) Inject(ctx context.Context, signedHex string) (string, error) {
	var hash string
	if err := c.do(ctx, http.MethodPost, "/injection/operation?chain=main", signedHex, &hash); err != nil {
		return "", err
	}
	return hash, nil
}
