package request

import "tezos-gateway/internal/event"

// ForgeRequest 构造 (forge) 一批合约调用
type ForgeRequest struct {
	Transactions  []event.TransactionDetail `json:"transactions" binding:"required,min=1,dive"`
	SourceAddress string                    `json:"sourceAddress" binding:"required"`
	PublicKey     string                    `json:"publicKey"`
	Reveal        bool                      `json:"reveal"`
	UseCache      bool                      `json:"useCache"`
	CallerID      string                    `json:"callerId"`
}

// InjectRequest 注入外部签名的操作
type InjectRequest struct {
	JobID             uint64 `json:"jobId" binding:"required"`
	Signature         string `json:"signature" binding:"required"`
	SignedTransaction string `json:"signedTransaction" binding:"required,hexadecimal"`
}

// SendRequest 由网关签名并发送
type SendRequest struct {
	Transactions  []event.TransactionDetail `json:"transactions" binding:"required,min=1,dive"`
	SecureKeyName string                    `json:"secureKeyName" binding:"required"`
	CallerID      string                    `json:"callerId"`
}

// ContractCallsQuery 合约调用查询参数
type ContractCallsQuery struct {
	Entrypoint string `form:"entrypoint"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
	Order      string `form:"order" binding:"omitempty,oneof=asc desc"`
}

type TokenBalanceQuery struct {
	TokenID string `form:"tokenId"`
}
