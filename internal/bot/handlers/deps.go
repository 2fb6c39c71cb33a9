package handlers

import (
	"log/slog"

	"github.com/edgard/affirmabot/internal/admin"
	"github.com/edgard/affirmabot/internal/bot/session"
	"github.com/edgard/affirmabot/internal/config"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Admin    *admin.Service
	Sessions *session.Table
}
