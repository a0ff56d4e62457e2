package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/summit/internal/audit"
	"github.com/smallbiznis/summit/internal/catalog"
	"github.com/smallbiznis/summit/internal/clock"
	"github.com/smallbiznis/summit/internal/config"
	"github.com/smallbiznis/summit/internal/lock"
	"github.com/smallbiznis/summit/internal/migration"
	"github.com/smallbiznis/summit/internal/observability"
	"github.com/smallbiznis/summit/internal/payment"
	"github.com/smallbiznis/summit/internal/registration"
	"github.com/smallbiznis/summit/internal/server"
	"github.com/smallbiznis/summit/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		migration.Module,

		// functional domains
		audit.Module,
		catalog.Module,
		registration.Module,
		payment.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
