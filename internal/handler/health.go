package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"tezos-gateway/internal/handler/response"
	"tezos-gateway/pkg/errno"
)

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

type HealthHandler struct {
	probes  map[string]Probe
	timeout time.Duration
}

func NewHealthHandler(probes map[string]Probe) *HealthHandler {
	return &HealthHandler{probes: probes, timeout: 2 * time.Second}
}

// HealthReport is the body of /health.
type HealthReport struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Check godoc
// @Summary Check system health
// @Description Pings postgres and redis. Any failing probe turns the answer into 503.
// @Tags system
// @Produce json
// @Success 200 {object} response.Response{data=HealthReport}
// @Failure 503 {object} response.Response{data=HealthReport}
// @Router /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = h.probes[name](ctx)
			return nil
		})
	}
	_ = g.Wait()

	report := HealthReport{Status: "UP", Service: "tezos-gateway", Checks: make(map[string]string, len(names))}
	for i, name := range names {
		if results[i] != nil {
			report.Status = "DOWN"
			report.Checks[name] = results[i].Error()
			continue
		}
		report.Checks[name] = "UP"
	}

	if report.Status != "UP" {
		response.ErrorWithData(c, errno.ErrDependencyDown, report)
		return
	}
	response.Success(c, report)
}
