package organization

import (
	"github.com/smallbiznis/bizops/internal/organization/repository"
	"github.com/smallbiznis/bizops/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
