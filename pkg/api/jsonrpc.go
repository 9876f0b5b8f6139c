package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/synth"
)

// JSONRPCServer handles JSON-RPC 2.0 requests against the engine
type JSONRPCServer struct {
	engine *synth.Engine
	oracle *synth.StaticOracle
	logger log.Logger
}

// NewJSONRPCServer creates a new JSON-RPC server
func NewJSONRPCServer(engine *synth.Engine, logger log.Logger) *JSONRPCServer {
	return &JSONRPCServer{
		engine: engine,
		logger: logger,
	}
}

// SetOracle enables the price administration methods. Nodes that feed
// prices from an external source leave it unset.
func (s *JSONRPCServer) SetOracle(oracle *synth.StaticOracle) {
	s.oracle = oracle
}

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements error interface
func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC Error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// ServeHTTP implements http.Handler
func (s *JSONRPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, nil, ParseError, "Parse error")
		return
	}

	if req.JSONRPC != "2.0" {
		s.sendError(w, req.ID, InvalidRequest, "Invalid Request")
		return
	}

	result, err := s.handleMethod(req.Method, req.Params)
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &RPCError{Code: InternalError, Message: err.Error()}
		}
		s.sendError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}

	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *JSONRPCServer) handleMethod(method string, params json.RawMessage) (interface{}, error) {
	switch method {
	// Market methods
	case "synth_createMarket":
		return s.createMarket(params)
	case "synth_configureMarket":
		return s.configureMarket(params)
	case "synth_getMarket":
		return s.getMarket(params)
	case "synth_listMarkets":
		return s.listMarkets(params)
	case "synth_getSnapshot":
		return s.getSnapshot(params)
	case "synth_getFundingState":
		return s.getFundingState(params)
	case "synth_getImpactPools":
		return s.getImpactPools(params)

	// Order methods
	case "synth_createOrder":
		return s.createOrder(params)
	case "synth_executeOrder":
		return s.executeOrder(params)
	case "synth_cancelOrder":
		return s.cancelOrder(params)
	case "synth_getOrder":
		return s.getOrder(params)

	// Position methods
	case "synth_getPosition":
		return s.getPosition(params)
	case "synth_getPositions":
		return s.getPositions(params)

	// Claim methods
	case "synth_getClaimable":
		return s.getClaimable(params)
	case "synth_claim":
		return s.claim(params)

	// Oracle methods
	case "synth_setPrice":
		return s.setPrice(params)
	case "synth_getPrice":
		return s.getPrice(params)

	// Info methods
	case "synth_getInfo":
		return s.getInfo(params)
	case "synth_ping":
		return "pong", nil
	case "synth_health":
		return map[string]string{"status": "ok"}, nil

	default:
		return nil, &RPCError{Code: MethodNotFound, Message: "Method not found"}
	}
}

func (s *JSONRPCServer) createMarket(params json.RawMessage) (interface{}, error) {
	var m synth.Market
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	if err := s.engine.CreateMarket(m); err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{
		"marketToken": m.MarketToken,
		"status":      "created",
	}, nil
}

func (s *JSONRPCServer) configureMarket(params json.RawMessage) (interface{}, error) {
	var p struct {
		Market string             `json:"market"`
		Config synth.MarketConfig `json:"config"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	if err := s.engine.ConfigureMarket(p.Market, p.Config); err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{"status": "configured"}, nil
}

func (s *JSONRPCServer) getMarket(params json.RawMessage) (interface{}, error) {
	var p struct {
		Market string `json:"market"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	m, err := s.engine.GetMarket(p.Market)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return m, nil
}

func (s *JSONRPCServer) listMarkets(json.RawMessage) (interface{}, error) {
	markets, err := s.engine.Markets()
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return markets, nil
}

func (s *JSONRPCServer) getSnapshot(params json.RawMessage) (interface{}, error) {
	var p struct {
		Market string `json:"market"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	snap, err := s.engine.Snapshot(p.Market)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return snap, nil
}

func (s *JSONRPCServer) getImpactPools(params json.RawMessage) (interface{}, error) {
	var p struct {
		Market string `json:"market"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	snap, err := s.engine.Snapshot(p.Market)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{
		"market":             p.Market,
		"positionImpactPool": snap.PositionImpactPool,
		"swapImpactPools":    snap.SwapImpactPools,
	}, nil
}

func (s *JSONRPCServer) getFundingState(params json.RawMessage) (interface{}, error) {
	var p struct {
		Market string `json:"market"`
		Token  string `json:"token"`
		IsLong bool   `json:"isLong"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	state, err := s.engine.GetFundingState(p.Market, p.Token, p.IsLong)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return state, nil
}

func (s *JSONRPCServer) createOrder(params json.RawMessage) (interface{}, error) {
	var o synth.Order
	if err := json.Unmarshal(params, &o); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	if err := s.engine.CreateOrder(&o); err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{
		"orderId": o.ID,
		"status":  "created",
	}, nil
}

func (s *JSONRPCServer) executeOrder(params json.RawMessage) (interface{}, error) {
	var p struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	res, err := s.engine.ExecuteOrder(p.OrderID)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return res, nil
}

func (s *JSONRPCServer) cancelOrder(params json.RawMessage) (interface{}, error) {
	var p struct {
		OrderID string `json:"orderId"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	if p.Reason == "" {
		p.Reason = "cancelled by user"
	}
	if err := s.engine.CancelOrder(p.OrderID, p.Reason); err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{
		"orderId": p.OrderID,
		"status":  "cancelled",
	}, nil
}

func (s *JSONRPCServer) getOrder(params json.RawMessage) (interface{}, error) {
	var p struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	order, err := s.engine.GetOrder(p.OrderID)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return order, nil
}

func (s *JSONRPCServer) getPosition(params json.RawMessage) (interface{}, error) {
	var p struct {
		Account         string `json:"account"`
		Market          string `json:"market"`
		CollateralToken string `json:"collateralToken"`
		IsLong          bool   `json:"isLong"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	pos, err := s.engine.GetPosition(p.Account, p.Market, p.CollateralToken, p.IsLong)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return pos, nil
}

func (s *JSONRPCServer) getPositions(params json.RawMessage) (interface{}, error) {
	var p struct {
		Account string `json:"account"`
		Market  string `json:"market"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	if p.Account != "" {
		positions, err := s.engine.GetAccountPositions(p.Account)
		if err != nil {
			return nil, &RPCError{Code: InternalError, Message: err.Error()}
		}
		return positions, nil
	}
	if p.Market != "" {
		positions, err := s.engine.GetMarketPositions(p.Market)
		if err != nil {
			return nil, &RPCError{Code: InternalError, Message: err.Error()}
		}
		return positions, nil
	}
	return nil, &RPCError{Code: InvalidParams, Message: "account or market required"}
}

func parseClaimKind(kind string) (synth.ClaimKind, error) {
	switch kind {
	case "funding":
		return synth.ClaimFunding, nil
	case "affiliate_reward":
		return synth.ClaimAffiliateReward, nil
	case "ui_fee":
		return synth.ClaimUIFee, nil
	case "fee_receiver":
		return synth.ClaimFeeReceiver, nil
	}
	return 0, fmt.Errorf("unknown claim kind %q", kind)
}

func (s *JSONRPCServer) getClaimable(params json.RawMessage) (interface{}, error) {
	var p struct {
		Kind    string `json:"kind"`
		Market  string `json:"market"`
		Token   string `json:"token"`
		Account string `json:"account"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	kind, err := parseClaimKind(p.Kind)
	if err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}
	amount, err := s.engine.GetClaimable(kind, p.Market, p.Token, p.Account)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{
		"amount": amount,
	}, nil
}

func (s *JSONRPCServer) claim(params json.RawMessage) (interface{}, error) {
	var p struct {
		Kind    string `json:"kind"`
		Market  string `json:"market"`
		Token   string `json:"token"`
		Account string `json:"account"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	kind, err := parseClaimKind(p.Kind)
	if err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}
	amount, err := s.engine.Claim(kind, p.Market, p.Token, p.Account)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{
		"amount": amount,
		"status": "claimed",
	}, nil
}

func (s *JSONRPCServer) setPrice(params json.RawMessage) (interface{}, error) {
	if s.oracle == nil {
		return nil, &RPCError{Code: MethodNotFound, Message: "price administration disabled"}
	}
	var p struct {
		Token string          `json:"token"`
		Min   decimal.Decimal `json:"min"`
		Max   decimal.Decimal `json:"max"`
		Spot  decimal.Decimal `json:"spot"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	if p.Token == "" {
		return nil, &RPCError{Code: InvalidParams, Message: "token required"}
	}
	if !p.Spot.IsZero() {
		s.oracle.SetSpot(p.Token, p.Spot)
	} else if p.Min.IsPositive() && p.Max.GreaterThanOrEqual(p.Min) {
		s.oracle.SetPrice(p.Token, p.Min, p.Max)
	} else {
		return nil, &RPCError{Code: InvalidParams, Message: "spot or min/max required"}
	}
	return map[string]interface{}{"status": "ok"}, nil
}

func (s *JSONRPCServer) getPrice(params json.RawMessage) (interface{}, error) {
	if s.oracle == nil {
		return nil, &RPCError{Code: MethodNotFound, Message: "price administration disabled"}
	}
	var p struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}
	price, err := s.oracle.GetPrice(p.Token)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return price, nil
}

func (s *JSONRPCServer) getInfo(json.RawMessage) (interface{}, error) {
	markets, err := s.engine.Markets()
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{
		"version":     "1.0.0",
		"timestamp":   time.Now().Unix(),
		"marketCount": len(markets),
	}, nil
}

func (s *JSONRPCServer) sendError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
		ID: id,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// StartJSONRPCServer starts the JSON-RPC server
func StartJSONRPCServer(ctx context.Context, port int, engine *synth.Engine, logger log.Logger) error {
	return StartJSONRPCServerWithHandler(ctx, port, NewJSONRPCServer(engine, logger), logger)
}

// StartJSONRPCServerWithHandler starts the JSON-RPC server with a
// pre-configured handler, mounting it at /rpc alongside a health endpoint.
func StartJSONRPCServerWithHandler(ctx context.Context, port int, server *JSONRPCServer, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/", server)
	mux.Handle("/rpc", server)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy","timestamp":%d}`, time.Now().Unix())
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	logger.Info("JSON-RPC server started", "port", port)
	return httpServer.ListenAndServe()
}
