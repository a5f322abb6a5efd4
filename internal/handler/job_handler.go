package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"tezos-gateway/internal/chain"
	"tezos-gateway/internal/handler/request"
	"tezos-gateway/internal/handler/response"
	"tezos-gateway/internal/model"
	"tezos-gateway/internal/service"
	"tezos-gateway/pkg/errno"
	"tezos-gateway/pkg/validator"
)

// Forger is the forging side of the gateway.
type Forger interface {
	Forge(ctx context.Context, req service.ForgeRequest) (*model.Job, []model.Operation, error)
	Estimate(ctx context.Context, req service.ForgeRequest) ([]chain.Estimation, error)
}

// JobRunner drives existing jobs.
type JobRunner interface {
	GetJob(ctx context.Context, id uint64) (*model.Job, error)
	Inject(ctx context.Context, req service.InjectRequest) (*model.Job, error)
	InjectAsync(ctx context.Context, req service.InjectRequest) (*model.Job, error)
	Send(ctx context.Context, req service.SendRequest) (*model.Job, error)
	SendAsync(ctx context.Context, req service.SendRequest) (*model.Job, error)
}

type JobHandler struct {
	forger Forger
	jobs   JobRunner
}

func NewJobHandler(forger Forger, jobs JobRunner) *JobHandler {
	return &JobHandler{forger: forger, jobs: jobs}
}

// ForgeResult is the job created by a forge together with its operations.
type ForgeResult struct {
	Job        *model.Job        `json:"job"`
	Operations []model.Operation `json:"operations"`
}

func bindError(err error) error {
	return errno.ErrBind.Withf("%s", validator.GetErrorMsg(err))
}

func toForgeRequest(req request.ForgeRequest) service.ForgeRequest {
	return service.ForgeRequest{
		Transactions:  req.Transactions,
		SourceAddress: req.SourceAddress,
		PublicKey:     req.PublicKey,
		Reveal:        req.Reveal,
		UseCache:      req.UseCache,
		CallerID:      req.CallerID,
	}
}

// Forge 构造操作并创建 Job
// @Summary Forge a batch of contract calls
// @Description Estimates, forges and stores a batch. The job is returned in status created with the bytes to sign.
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body request.ForgeRequest true "Forge request"
// @Success 200 {object} response.Response{data=ForgeResult}
// @Failure 400 {object} response.Response
// @Router /api/v1/forge/jobs [post]
func (h *JobHandler) Forge(c *gin.Context) {
	var req request.ForgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	job, ops, err := h.forger.Forge(c.Request.Context(), toForgeRequest(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ForgeResult{Job: job, Operations: ops})
}

// Estimate 估算费用
// @Summary Estimate a batch of contract calls
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body request.ForgeRequest true "Estimate request"
// @Success 200 {object} response.Response{data=[]chain.Estimation}
// @Router /api/v1/estimate [post]
func (h *JobHandler) Estimate(c *gin.Context) {
	var req request.ForgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	ests, err := h.forger.Estimate(c.Request.Context(), toForgeRequest(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ests)
}

// GetJob 查询 Job
// @Summary Get a job
// @Tags Jobs
// @Produce json
// @Param id path int true "Job id"
// @Success 200 {object} response.Response{data=model.Job}
// @Failure 404 {object} response.Response
// @Router /api/v1/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind.Withf("job id must be a positive integer"))
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, job)
}

// Inject 注入外部签名的 Job
// @Summary Inject a signed job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body request.InjectRequest true "Signed operation"
// @Success 200 {object} response.Response{data=model.Job}
// @Router /api/v1/jobs [patch]
func (h *JobHandler) Inject(c *gin.Context) {
	h.inject(c, h.jobs.Inject)
}

// InjectAsync 异步注入
// @Summary Queue the injection of a signed job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body request.InjectRequest true "Signed operation"
// @Success 200 {object} response.Response{data=model.Job}
// @Router /api/v1/async/jobs [patch]
func (h *JobHandler) InjectAsync(c *gin.Context) {
	h.inject(c, h.jobs.InjectAsync)
}

func (h *JobHandler) inject(c *gin.Context, run func(context.Context, service.InjectRequest) (*model.Job, error)) {
	var req request.InjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	job, err := run(c.Request.Context(), service.InjectRequest{
		JobID:             req.JobID,
		Signature:         req.Signature,
		SignedTransaction: req.SignedTransaction,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, job)
}

// Send 由网关签名并广播
// @Summary Forge, sign and broadcast with a secure key
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body request.SendRequest true "Send request"
// @Success 200 {object} response.Response{data=model.Job}
// @Router /api/v1/send/jobs [post]
func (h *JobHandler) Send(c *gin.Context) {
	h.send(c, h.jobs.Send)
}

// SendAsync 异步发送
// @Summary Queue a send with a secure key
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body request.SendRequest true "Send request"
// @Success 200 {object} response.Response{data=model.Job}
// @Router /api/v1/async/send/jobs [post]
func (h *JobHandler) SendAsync(c *gin.Context) {
	h.send(c, h.jobs.SendAsync)
}

func (h *JobHandler) send(c *gin.Context, run func(context.Context, service.SendRequest) (*model.Job, error)) {
	var req request.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	job, err := run(c.Request.Context(), service.SendRequest{
		Transactions:  req.Transactions,
		SecureKeyName: req.SecureKeyName,
		CallerID:      req.CallerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, job)
}
