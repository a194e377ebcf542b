package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/lifeleveling/lifeleveling/internal/adapters/http/api/v1/handlers"
)

type Router struct {
	auth      *handlers.AuthHandler
	users     *handlers.UserHandler
	reminders *handlers.ReminderHandler
	push      *handlers.PushHandler
	apiKeyMW  echo.MiddlewareFunc
}

func NewRouter(auth *handlers.AuthHandler, users *handlers.UserHandler, reminders *handlers.ReminderHandler, push *handlers.PushHandler, apiKeyMW echo.MiddlewareFunc) *Router {
	return &Router{auth: auth, users: users, reminders: reminders, push: push, apiKeyMW: apiKeyMW}
}

func (r *Router) Register(g *echo.Group) {
	// The provider redirects the browser here, so no api key is sent.
	g.GET("/auth/oauth/google/callback", r.auth.GoogleCallback)

	auth := g.Group("/auth", r.apiKeyMW)
	auth.GET("/state", r.auth.State)
	auth.POST("/signin", r.auth.SignIn)
	auth.POST("/signup", r.auth.SignUp)
	auth.POST("/google", r.auth.SignInWithGoogle)
	auth.GET("/google/start", r.auth.GoogleStart)
	auth.POST("/signout", r.auth.SignOut)
	auth.GET("/methods", r.auth.SignInMethods)
	auth.POST("/password/reset/start", r.auth.PasswordResetStart)
	auth.DELETE("/account", r.auth.DeleteAccount)

	users := g.Group("/users", r.apiKeyMW)
	users.POST("", r.users.Create)
	users.PATCH("/me", r.users.EditMe)
	users.GET("/:id", r.users.Fetch)

	reminders := g.Group("/reminders", r.apiKeyMW)
	reminders.POST("", r.reminders.Schedule)
	reminders.DELETE("/:id", r.reminders.Cancel)

	push := g.Group("/push", r.apiKeyMW)
	push.POST("/messages", r.push.Deliver)
	push.POST("/token", r.push.NewToken)
}
