package main

import (
	"github.com/smallbiznis/customerdir/internal/clock"
	"github.com/smallbiznis/customerdir/internal/config"
	"github.com/smallbiznis/customerdir/internal/customer"
	"github.com/smallbiznis/customerdir/internal/migration"
	"github.com/smallbiznis/customerdir/internal/observability"
	"github.com/smallbiznis/customerdir/internal/providers/email"
	"github.com/smallbiznis/customerdir/internal/server"
	"github.com/smallbiznis/customerdir/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		migration.Module,

		// Directory
		email.Module,
		customer.Module,
		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}
