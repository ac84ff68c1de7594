package public

import "github.com/payflow-core/internal/provider"

// Handler 公开支付 API 处理器入口
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
