package app

import (
	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/db"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/logger"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/service"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/transport"
)

// New wires the whole service. Extra options are appended, so callers can
// fx.Decorate or fx.Replace any of the provided components.
func New(opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		service.Module,
		transport.Module,
	}, opts...)...)
}
