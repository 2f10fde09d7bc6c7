package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Placeholder page handlers. The real screens are rendered by the frontend;
// these routes exist so the gatekeeper's path classes have endpoints to
// guard (and so redirects land somewhere sensible in development).

func page(title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8",
			[]byte("<!doctype html><title>"+title+"</title><h1>"+title+"</h1>"))
	}
}

func registerPages(r *gin.Engine) {
	r.GET("/auth/login", page("Login"))
	r.GET("/auth/register", page("Register"))
	r.GET("/auth/reset", page("Reset password"))
	r.GET("/auth/reset/confirm", page("Choose a new password"))

	r.GET("/app", page("Dashboard"))
	r.GET("/tasks", page("Tasks"))
	r.GET("/tasks/:id", page("Task"))
	r.GET("/settings", page("Settings"))
}
