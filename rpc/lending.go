package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"hyperlendp2p/core/types"
	"hyperlendp2p/native/lending"
	"hyperlendp2p/observability"
)

const pauseModule = "lending"

type requestLoanParams struct {
	Caller           string `json:"caller"`
	Asset            string `json:"asset"`
	Collateral       string `json:"collateral"`
	AssetAmount      string `json:"assetAmount"`
	RepaymentAmount  string `json:"repaymentAmount"`
	CollateralAmount string `json:"collateralAmount"`
	DurationSeconds  uint64 `json:"durationSeconds"`
	Liquidatable     bool   `json:"liquidatable"`
	ThresholdBps     uint64 `json:"thresholdBps"`
	AssetFeed        string `json:"assetFeed"`
	CollateralFeed   string `json:"collateralFeed"`
}

type loanIDParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
}

type setParamParams struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

type setPausedParams struct {
	Paused bool `json:"paused"`
}

type setPriceParams struct {
	Feed      string `json:"feed"`
	Price     string `json:"price"`
	UpdatedAt int64  `json:"updatedAt"`
}

type loanResult struct {
	LoanID           uint64 `json:"loanId"`
	Borrower         string `json:"borrower"`
	Lender           string `json:"lender,omitempty"`
	Asset            string `json:"asset"`
	Collateral       string `json:"collateral"`
	AssetAmount      string `json:"assetAmount"`
	RepaymentAmount  string `json:"repaymentAmount"`
	CollateralAmount string `json:"collateralAmount"`
	CreatedAt        int64  `json:"createdAt"`
	StartedAt        int64  `json:"startedAt,omitempty"`
	DurationSeconds  uint64 `json:"durationSeconds"`
	Status           string `json:"status"`
	Liquidatable     bool   `json:"liquidatable"`
	ThresholdBps     uint64 `json:"thresholdBps,omitempty"`
	AssetFeed        string `json:"assetFeed,omitempty"`
	CollateralFeed   string `json:"collateralFeed,omitempty"`
}

type paramsResult struct {
	FeeCollector              string `json:"feeCollector"`
	RequestExpirationSeconds  uint64 `json:"requestExpirationSeconds"`
	ProtocolFeeBps            uint64 `json:"protocolFeeBps"`
	LiquidatorBonusBps        uint64 `json:"liquidatorBonusBps"`
	ProtocolLiquidationFeeBps uint64 `json:"protocolLiquidationFeeBps"`
	MaxPriceAgeSeconds        uint64 `json:"maxPriceAgeSeconds"`
	Version                   uint64 `json:"version"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("parameter object required")
	}
	if len(req.Params) > 1 {
		return fmt.Errorf("too many parameters")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid parameter object: %s", err.Error())
	}
	return nil
}

func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s must be a hex address", field)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	return amount, nil
}

func (s *Server) handleRequestLoan(w http.ResponseWriter, req *RPCRequest) {
	var params requestLoanParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	loanReq := &lending.LoanRequest{
		Borrower:     caller,
		Duration:     params.DurationSeconds,
		Liquidatable: params.Liquidatable,
		ThresholdBps: params.ThresholdBps,
	}
	if loanReq.Asset, err = parseAddress("asset", params.Asset); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if loanReq.Collateral, err = parseAddress("collateral", params.Collateral); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if loanReq.AssetAmount, err = parseAmount("assetAmount", params.AssetAmount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if loanReq.RepaymentAmount, err = parseAmount("repaymentAmount", params.RepaymentAmount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if loanReq.CollateralAmount, err = parseAmount("collateralAmount", params.CollateralAmount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if params.Liquidatable {
		if loanReq.AssetFeed, err = parseAddress("assetFeed", params.AssetFeed); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		if loanReq.CollateralFeed, err = parseAddress("collateralFeed", params.CollateralFeed); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}

	raw, err := lending.EncodeLoanRequest(loanReq)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.engine.RequestLoan(caller, raw)
	observability.Market().RecordOperation("requestLoan", err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"loanId": id})
}

func (s *Server) handleCancelLoan(w http.ResponseWriter, req *RPCRequest) {
	caller, id, ok := s.callerAndID(w, req)
	if !ok {
		return
	}
	err := s.engine.CancelLoan(caller, id)
	observability.Market().RecordOperation("cancelLoan", err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	observability.Market().RecordOutcome(lending.StatusCanceled.String())
	writeResult(w, req.ID, map[string]bool{"canceled": true})
}

func (s *Server) handleFillRequest(w http.ResponseWriter, req *RPCRequest) {
	caller, id, ok := s.callerAndID(w, req)
	if !ok {
		return
	}
	err := s.engine.FillRequest(caller, id)
	observability.Market().RecordOperation("fillRequest", err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"filled": true})
}

func (s *Server) handleRepayLoan(w http.ResponseWriter, req *RPCRequest) {
	caller, id, ok := s.callerAndID(w, req)
	if !ok {
		return
	}
	err := s.engine.RepayLoan(caller, id)
	observability.Market().RecordOperation("repayLoan", err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	observability.Market().RecordOutcome(lending.StatusRepaid.String())
	writeResult(w, req.ID, map[string]bool{"repaid": true})
}

func (s *Server) handleLiquidateLoan(w http.ResponseWriter, req *RPCRequest) {
	caller, id, ok := s.callerAndID(w, req)
	if !ok {
		return
	}
	liquidated, err := s.engine.LiquidateLoan(caller, id)
	observability.Market().RecordOperation("liquidateLoan", err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if liquidated {
		observability.Market().RecordOutcome(lending.StatusLiquidated.String())
	}
	writeResult(w, req.ID, map[string]bool{"liquidated": liquidated})
}

func (s *Server) handleIsLiquidatable(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	eligible, err := s.engine.IsLiquidatable(params.LoanID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"liquidatable": eligible})
}

func (s *Server) handleGetLoan(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	loan, err := s.engine.Loan(params.LoanID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanToResult(loan))
}

func (s *Server) handleLoanCount(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, map[string]uint64{"count": s.engine.LoanCount()})
}

func (s *Server) handleGetParams(w http.ResponseWriter, req *RPCRequest) {
	store := s.engine.ParamStore()
	params := store.Snapshot()
	writeResult(w, req.ID, paramsResult{
		FeeCollector:              params.FeeCollector.Hex(),
		RequestExpirationSeconds:  params.RequestExpiration,
		ProtocolFeeBps:            params.ProtocolFeeBps,
		LiquidatorBonusBps:        params.LiquidatorBonusBps,
		ProtocolLiquidationFeeBps: params.ProtocolLiquidationFeeBps,
		MaxPriceAgeSeconds:        params.MaxPriceAge,
		Version:                   store.Version(),
	})
}

func (s *Server) handleSetParam(w http.ResponseWriter, req *RPCRequest) {
	var params setParamParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	store := s.engine.ParamStore()
	value := strings.TrimSpace(params.Value)

	if params.Name == "feeCollector" {
		collector, addrErr := parseAddress("value", value)
		if addrErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, addrErr.Error(), nil)
			return
		}
		if err := store.SetFeeCollector(caller, collector); err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		observability.Market().RecordParamUpdate()
		writeResult(w, req.ID, map[string]uint64{"version": store.Version()})
		return
	}

	numeric, numErr := parseUintValue(value)
	if numErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, numErr.Error(), nil)
		return
	}
	switch params.Name {
	case "requestExpiration":
		err = store.SetRequestExpiration(caller, numeric)
	case "protocolFeeBps":
		err = store.SetProtocolFeeBps(caller, numeric)
	case "liquidatorBonusBps":
		err = store.SetLiquidatorBonusBps(caller, numeric)
	case "protocolLiquidationFeeBps":
		err = store.SetProtocolLiquidationFeeBps(caller, numeric)
	case "maxPriceAge":
		err = store.SetMaxPriceAge(caller, numeric)
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("unknown parameter %q", params.Name), nil)
		return
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	observability.Market().RecordParamUpdate()
	writeResult(w, req.ID, map[string]uint64{"version": store.Version()})
}

func (s *Server) handleSetPaused(w http.ResponseWriter, req *RPCRequest) {
	var params setPausedParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.pauses.SetPaused(pauseModule, params.Paused)
	writeResult(w, req.ID, map[string]bool{"paused": params.Paused})
}

func (s *Server) handleListEvents(w http.ResponseWriter, req *RPCRequest) {
	evts := s.emitter.Events()
	if evts == nil {
		evts = []types.Event{}
	}
	writeResult(w, req.ID, evts)
}

func (s *Server) handleSetPrice(w http.ResponseWriter, req *RPCRequest) {
	var params setPriceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	feedID, err := parseAddress("feed", params.Feed)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	feed, err := s.feeds.Feed(feedID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	manual, ok := feed.(*lending.ManualFeed)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "feed does not accept posted prices", nil)
		return
	}
	manual.Set(price, params.UpdatedAt)
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) callerAndID(w http.ResponseWriter, req *RPCRequest) (common.Address, uint64, bool) {
	var params loanIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return common.Address{}, 0, false
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return common.Address{}, 0, false
	}
	return caller, params.LoanID, true
}

func parseUintValue(value string) (uint64, error) {
	parsed, err := parseAmount("value", value)
	if err != nil {
		return 0, err
	}
	if parsed.Sign() < 0 || !parsed.IsUint64() {
		return 0, fmt.Errorf("value out of range")
	}
	return parsed.Uint64(), nil
}

func loanToResult(loan *lending.Loan) loanResult {
	result := loanResult{
		LoanID:           loan.ID,
		Borrower:         loan.Borrower.Hex(),
		Asset:            loan.Asset.Hex(),
		Collateral:       loan.Collateral.Hex(),
		AssetAmount:      loan.AssetAmount.String(),
		RepaymentAmount:  loan.RepaymentAmount.String(),
		CollateralAmount: loan.CollateralAmount.String(),
		CreatedAt:        loan.CreatedAt,
		StartedAt:        loan.StartedAt,
		DurationSeconds:  loan.Duration,
		Status:           loan.Status.String(),
		Liquidatable:     loan.Terms.Enabled,
	}
	if loan.Lender != (common.Address{}) {
		result.Lender = loan.Lender.Hex()
	}
	if loan.Terms.Enabled {
		result.ThresholdBps = loan.Terms.ThresholdBps
		result.AssetFeed = loan.Terms.AssetFeed.Hex()
		result.CollateralFeed = loan.Terms.CollateralFeed.Hex()
	}
	return result
}
