// internal/app/features/pages/handler.go
package pages

import (
	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"go.uber.org/zap"
)

// Handler serves the markdown pages collection.
type Handler struct {
	Content *content.Facade
	Log     *zap.Logger
}

// NewHandler constructs a Handler bound to the content facade and logger.
func NewHandler(c *content.Facade, logger *zap.Logger) *Handler {
	return &Handler{
		Content: c,
		Log:     logger,
	}
}
