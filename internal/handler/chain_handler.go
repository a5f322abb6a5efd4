package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tezos-gateway/internal/handler/request"
	"tezos-gateway/internal/handler/response"
	"tezos-gateway/internal/indexer"
)

// ChainReader answers read queries from block explorers.
type ChainReader interface {
	GetContractCalls(ctx context.Context, contract string, f indexer.Filters) ([]indexer.IndexerTransaction, error)
	GetTokenBalance(ctx context.Context, contract, account string, f indexer.Filters) (decimal.Decimal, error)
	IsConfirmed(ctx context.Context, hash string, depth int64) (bool, error)
}

type ChainHandler struct {
	reader ChainReader
	depth  int64
}

func NewChainHandler(reader ChainReader, depth int64) *ChainHandler {
	return &ChainHandler{reader: reader, depth: depth}
}

// ContractCalls 查询合约调用历史
// @Summary List calls to a contract
// @Tags Chain
// @Produce json
// @Param address path string true "Contract address"
// @Param entrypoint query string false "Entry point"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Response{data=[]indexer.IndexerTransaction}
// @Router /api/v1/contract/{address}/calls [get]
func (h *ChainHandler) ContractCalls(c *gin.Context) {
	var q request.ContractCallsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}

	txs, err := h.reader.GetContractCalls(c.Request.Context(), c.Param("address"), indexer.Filters{
		Entrypoint: q.Entrypoint,
		Limit:      q.Limit,
		Offset:     q.Offset,
		Order:      q.Order,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, txs)
}

// TokenBalance 查询代币余额
// @Summary Token balance of an account
// @Tags Chain
// @Produce json
// @Param contract path string true "Token contract"
// @Param account path string true "Account address"
// @Param tokenId query string false "Token id"
// @Success 200 {object} response.Response
// @Router /api/v1/tokens/{contract}/balance/{account} [get]
func (h *ChainHandler) TokenBalance(c *gin.Context) {
	var q request.TokenBalanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}

	balance, err := h.reader.GetTokenBalance(c.Request.Context(), c.Param("contract"), c.Param("account"), indexer.Filters{TokenID: q.TokenID})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"balance": balance})
}

// OperationConfirmed 查询操作是否已确认
// @Summary Whether an operation reached the confirmation depth
// @Tags Chain
// @Produce json
// @Param hash path string true "Operation hash"
// @Success 200 {object} response.Response
// @Router /api/v1/operations/{hash}/confirmed [get]
func (h *ChainHandler) OperationConfirmed(c *gin.Context) {
	hash := c.Param("hash")
	confirmed, err := h.reader.IsConfirmed(c.Request.Context(), hash, h.depth)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"hash": hash, "confirmed": confirmed, "depth": h.depth})
}
