package spin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/KNICEX/spin-perp/internal/metrics"
	"github.com/go-resty/resty/v2"
)

// https://docs.near.org/api/rpc/contracts#call-a-contract-function

type rpcClient struct {
	http       *resty.Client
	url        string
	contractId string
	finality   string
}

type queryRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Id      string      `json:"id"`
	Method  string      `json:"method"`
	Params  queryParams `json:"params"`
}

type queryParams struct {
	RequestType string `json:"request_type"`
	Finality    string `json:"finality"`
	AccountId   string `json:"account_id"`
	MethodName  string `json:"method_name"`
	ArgsBase64  string `json:"args_base64"`
}

type queryResponse struct {
	Result *struct {
		Result      []int    `json:"result"` // 合约返回值的字节数组
		Logs        []string `json:"logs"`
		BlockHeight uint64   `json:"block_height"`
		Error       string   `json:"error"` // 合约 panic 时返回
	} `json:"result"`
	Error *RPCError `json:"error"`
}

// RPCError 节点返回的 JSON-RPC 错误
type RPCError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Cause   *struct {
		Name string          `json:"name"`
		Info json.RawMessage `json:"info"`
	} `json:"cause"`
}

func (e *RPCError) Error() string {
	if e.Cause != nil && e.Cause.Name != "" {
		return fmt.Sprintf("rpc error %d %s: %s", e.Code, e.Cause.Name, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ContractError 合约执行失败
type ContractError struct {
	Method  string
	Message string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract method %s failed: %s", e.Method, e.Message)
}

// view 调用合约只读方法, 把返回值反序列化到 out
func (c *rpcClient) view(ctx context.Context, method string, args any, out any) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.RPCRequestsTotal.WithLabelValues(method, result).Inc()
	}()

	if args == nil {
		args = struct{}{}
	}
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: marshal args: %w", method, err)
	}

	req := queryRequest{
		JSONRPC: "2.0",
		Id:      "dontcare",
		Method:  "query",
		Params: queryParams{
			RequestType: "call_function",
			Finality:    c.finality,
			AccountId:   c.contractId,
			MethodName:  method,
			ArgsBase64:  base64.StdEncoding.EncodeToString(rawArgs),
		},
	}
	var qr queryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&qr).
		ForceContentType("application/json").
		Post(c.url)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: unexpected http status %s", method, resp.Status())
	}

	if qr.Error != nil {
		return fmt.Errorf("%s: %w", method, qr.Error)
	}
	if qr.Result == nil {
		return fmt.Errorf("%s: empty rpc result", method)
	}
	if qr.Result.Error != "" {
		return &ContractError{Method: method, Message: qr.Result.Error}
	}

	// 返回值是字节数组, 需要再解一次
	raw := make([]byte, len(qr.Result.Result))
	for i, b := range qr.Result.Result {
		raw[i] = byte(b)
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}
