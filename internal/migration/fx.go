package migration

import (
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	"github.com/smallbiznis/bizops/internal/config"
	invitedomain "github.com/smallbiznis/bizops/internal/invitation/domain"
	organizationdomain "github.com/smallbiznis/bizops/internal/organization/domain"
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
	"github.com/smallbiznis/bizops/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Non-postgres deployments (sqlite, mysql) derive the schema
			// from the models.
			if err := conn.AutoMigrate(
				&authdomain.User{},
				&authdomain.Session{},
				&authdomain.LoginToken{},
				&organizationdomain.Organization{},
				&organizationdomain.OrganizationMember{},
				&invitedomain.Invitation{},
				&profiledomain.Profile{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureBootstrapAdmin(conn, cfg)
	}),
)
