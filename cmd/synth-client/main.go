package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/luxfi/log"
)

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type SynthClient struct {
	baseURL string
	logger  log.Logger
	client  *http.Client
	nextID  int
}

func NewSynthClient(baseURL string) *SynthClient {
	level, _ := log.ToLevel("info")
	return &SynthClient{
		baseURL: baseURL,
		logger:  log.NewTestLogger(level),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SynthClient) Call(method string, params interface{}) (json.RawMessage, error) {
	c.nextID++
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Post(c.baseURL+"/rpc", "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %s", string(body))
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: synth-client [-url URL] COMMAND [ARGS]

Commands:
  ping
  info
  markets
  snapshot MARKET
  price TOKEN [SPOT]
  position ACCOUNT MARKET TOKEN long|short
  order ORDER_ID
  execute ORDER_ID
  cancel ORDER_ID [REASON]
  claimable KIND MARKET TOKEN [ACCOUNT]
  call METHOD [PARAMS_JSON]
`)
	os.Exit(2)
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "JSON-RPC server URL")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	c := NewSynthClient(*baseURL)
	var (
		result json.RawMessage
		err    error
	)

	switch args[0] {
	case "ping":
		result, err = c.Call("synth_ping", nil)
	case "info":
		result, err = c.Call("synth_getInfo", nil)
	case "markets":
		result, err = c.Call("synth_listMarkets", nil)
	case "snapshot":
		if len(args) < 2 {
			usage()
		}
		result, err = c.Call("synth_getSnapshot", map[string]string{"market": args[1]})
	case "price":
		if len(args) < 2 {
			usage()
		}
		if len(args) >= 3 {
			result, err = c.Call("synth_setPrice", map[string]string{
				"token": args[1], "spot": args[2],
			})
		} else {
			result, err = c.Call("synth_getPrice", map[string]string{"token": args[1]})
		}
	case "position":
		if len(args) < 5 {
			usage()
		}
		result, err = c.Call("synth_getPosition", map[string]interface{}{
			"account":         args[1],
			"market":          args[2],
			"collateralToken": args[3],
			"isLong":          args[4] == "long",
		})
	case "order":
		if len(args) < 2 {
			usage()
		}
		result, err = c.Call("synth_getOrder", map[string]string{"orderId": args[1]})
	case "execute":
		if len(args) < 2 {
			usage()
		}
		result, err = c.Call("synth_executeOrder", map[string]string{"orderId": args[1]})
	case "cancel":
		if len(args) < 2 {
			usage()
		}
		params := map[string]string{"orderId": args[1]}
		if len(args) >= 3 {
			params["reason"] = args[2]
		}
		result, err = c.Call("synth_cancelOrder", params)
	case "claimable":
		if len(args) < 4 {
			usage()
		}
		params := map[string]string{
			"kind": args[1], "market": args[2], "token": args[3],
		}
		if len(args) >= 5 {
			params["account"] = args[4]
		}
		result, err = c.Call("synth_getClaimable", params)
	case "call":
		if len(args) < 2 {
			usage()
		}
		var params interface{}
		if len(args) >= 3 {
			if err := json.Unmarshal([]byte(args[2]), &params); err != nil {
				fmt.Fprintf(os.Stderr, "invalid params JSON: %v\n", err)
				os.Exit(1)
			}
		}
		result, err = c.Call(args[1], params)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}
