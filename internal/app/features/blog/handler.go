package blog

import (
	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"go.uber.org/zap"
)

// Handler serves the blog index, posts and RSS feed.
type Handler struct {
	Content *content.Facade
	Log     *zap.Logger
}

func NewHandler(c *content.Facade, logger *zap.Logger) *Handler {
	return &Handler{
		Content: c,
		Log:     logger,
	}
}
