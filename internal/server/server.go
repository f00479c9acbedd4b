package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/bizops/internal/auth"
	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	"github.com/smallbiznis/bizops/internal/auth/session"
	"github.com/smallbiznis/bizops/internal/config"
	"github.com/smallbiznis/bizops/internal/invitation"
	invitedomain "github.com/smallbiznis/bizops/internal/invitation/domain"
	"github.com/smallbiznis/bizops/internal/observability"
	"github.com/smallbiznis/bizops/internal/onboarding"
	onboardingdomain "github.com/smallbiznis/bizops/internal/onboarding/domain"
	"github.com/smallbiznis/bizops/internal/organization"
	organizationdomain "github.com/smallbiznis/bizops/internal/organization/domain"
	"github.com/smallbiznis/bizops/internal/profile"
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
	"github.com/smallbiznis/bizops/internal/providers/email"
	"github.com/smallbiznis/bizops/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	auth.Module,
	session.Module,
	organization.Module,
	profile.Module,
	invitation.Module,
	onboarding.Module,
	email.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config, httpMetrics *observability.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogMiddleware(log, obsCfg))
	r.Use(observability.TracingMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config, httpMetrics *observability.HTTPMetrics) *gin.Engine {
	return NewEngine(log, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	db              *gorm.DB
	authsvc         authdomain.Service
	onboardingsvc   onboardingdomain.Service
	organizationSvc organizationdomain.Service
	profileSvc      profiledomain.Service
	invitationSvc   invitedomain.Service
	emailProvider   email.Provider
	sessions        *session.Manager
	genID           *snowflake.Node
	loginLimiter    *ratelimit.LoginLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	DB              *gorm.DB
	Authsvc         authdomain.Service
	Onboardingsvc   onboardingdomain.Service
	OrganizationSvc organizationdomain.Service
	ProfileSvc      profiledomain.Service
	InvitationSvc   invitedomain.Service
	EmailProvider   email.Provider
	Sessions        *session.Manager
	GenID           *snowflake.Node
	LoginLimiter    *ratelimit.LoginLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		db:              p.DB,
		authsvc:         p.Authsvc,
		onboardingsvc:   p.Onboardingsvc,
		organizationSvc: p.OrganizationSvc,
		profileSvc:      p.ProfileSvc,
		invitationSvc:   p.InvitationSvc,
		emailProvider:   p.EmailProvider,
		sessions:        p.Sessions,
		genID:           p.GenID,
		loginLimiter:    p.LoginLimiter,
	}

	svc.registerAuthRoutes()
	svc.registerJoinRoutes()
	svc.registerOrgRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.POST("/signup", s.Signup)
	auth.POST("/register", s.Register)
	auth.POST("/callback", s.Callback)
	auth.GET("/me", s.Me)
	auth.POST("/welcome-seen", s.AuthRequired(), s.WelcomeSeen)

	user := auth.Group("/user", s.AuthRequired())
	{
		user.GET("/orgs", s.ListUserOrgs)
	}
}

func (s *Server) registerJoinRoutes() {
	join := s.engine.Group("/join")

	join.GET("/validate", s.ValidateInvite)
	join.POST("/accept", s.AuthRequired(), s.AcceptInvite)
}

func (s *Server) registerOrgRoutes() {
	orgs := s.engine.Group("/orgs", s.AuthRequired())

	orgs.POST("", s.CreateOrganization)
	orgs.GET("", s.ListUserOrgs)
	orgs.GET("/:id", s.RequireOrgRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleMember), s.GetOrganization)

	invites := orgs.Group("/:id/invites", s.RequireOrgRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin))
	{
		invites.POST("", s.InviteOrganizationMembers)
		invites.GET("", s.ListOrganizationInvites)
		invites.DELETE("/:inviteId", s.RevokeOrganizationInvite)
	}
}
