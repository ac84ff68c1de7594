package public

import (
	"github.com/payflow-core/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListGateways 获取启用的网关目录
func (h *Handler) ListGateways(c *gin.Context) {
	gateways, err := h.GatewayService.ListActive()
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list gateways", err)
		return
	}
	list := make([]gin.H, 0, len(gateways))
	for _, g := range gateways {
		list = append(list, gin.H{
			"code":              g.Code,
			"name":              g.Name,
			"supported_methods": g.SupportedMethods,
			"fee_percent":       g.FeePercent,
			"fee_fixed":         g.FeeFixed,
			"min_amount":        g.MinAmount,
			"max_amount":        g.MaxAmount,
			"supports_refund":   g.SupportsRefund,
		})
	}
	response.Success(c, list)
}
