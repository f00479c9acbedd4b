package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/bizops/internal/clock"
	"github.com/smallbiznis/bizops/internal/config"
	"github.com/smallbiznis/bizops/internal/logger"
	"github.com/smallbiznis/bizops/internal/migration"
	"github.com/smallbiznis/bizops/internal/observability"
	"github.com/smallbiznis/bizops/internal/server"
	"github.com/smallbiznis/bizops/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
