package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/taskdeck/backend/internal/client"
	"github.com/taskdeck/backend/internal/service"
)

type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter wires every route behind the admission gatekeeper. API routes
// additionally carry the session guard; page routes rely on the
// gatekeeper's redirect policy alone.
func NewRouter(
	auth *service.AuthService,
	tasks *service.TaskService,
	google *client.GoogleProvider,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(cfg.AllowedOrigins, true))
	r.Use(Gatekeeper(auth))

	r.GET("/", Root)
	r.GET("/ping", Ping)
	registerPages(r)

	authHandler := NewAuthHandler(auth)
	taskHandler := NewTaskHandler(tasks)

	api := r.Group("/api")

	authAPI := api.Group("/auth")
	authAPI.POST("/register", authHandler.Register)
	authAPI.POST("/login", authHandler.Login)
	authAPI.POST("/logout", authHandler.Logout)
	authAPI.GET("/session-check", authHandler.SessionCheck)
	authAPI.POST("/reset/request", authHandler.ResetRequest)
	authAPI.POST("/reset/confirm", authHandler.ResetConfirm)

	if google != nil {
		oauthHandler := NewOAuthHandler(auth, google)
		authAPI.GET("/oauth/google", oauthHandler.Start)
		authAPI.GET("/oauth/google/callback", oauthHandler.Callback)
	}

	guarded := api.Group("", RequireSession(auth))
	guarded.GET("/auth/me", authHandler.Me)
	guarded.PUT("/profile", authHandler.UpdateProfile)
	guarded.POST("/tasks", taskHandler.Create)
	guarded.GET("/tasks", taskHandler.List)
	guarded.GET("/tasks/:id", taskHandler.Get)
	guarded.PUT("/tasks/:id", taskHandler.Update)
	guarded.DELETE("/tasks/:id", taskHandler.Delete)
	guarded.GET("/dashboard", taskHandler.Dashboard)

	return r
}
