package event

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TransactionDetail is one entry point call requested by a caller. Amount
// and Fee are in mutez; a zero Fee keeps the estimated fee.
type TransactionDetail struct {
	ContractAddress  string          `json:"contractAddress" binding:"required"`
	EntryPoint       string          `json:"entryPoint" binding:"required"`
	EntryPointParams json.RawMessage `json:"entryPointParams,omitempty" swaggertype:"object"`
	Amount           decimal.Decimal `json:"amount,omitempty" swaggertype:"string"`
	Fee              decimal.Decimal `json:"fee,omitempty" swaggertype:"string"`
}

// SendTransactionsMessage 异步发送任务
// Topic: queues.send
type SendTransactionsMessage struct {
	Transactions  []TransactionDetail `json:"transactions"`
	SecureKeyName string              `json:"secureKeyName"`
	JobID         uint64              `json:"jobId"`
	CallerID      string              `json:"callerId,omitempty"`
}

// InjectMessage 异步注入已签名操作
// Topic: queues.inject
type InjectMessage struct {
	JobID             uint64 `json:"jobId"`
	Signature         string `json:"signature"`
	SignedTransaction string `json:"signedTransaction"`
}

// TransactionConfirmed 交易确认事件, one per confirmed transaction row
// Topic: queues.confirmation
type TransactionConfirmed struct {
	ContractAddress string          `json:"contractAddress"`
	Entrypoint      string          `json:"entrypoint"`
	Parameters      json.RawMessage `json:"parameters"`
	JobID           uint64          `json:"jobId"`
}

// Routing headers of TransactionConfirmed.
const (
	HeaderEntrypoint      = "entrypoint"
	HeaderContractAddress = "contractAddress"
	HeaderCallerID        = "callerId"
)
