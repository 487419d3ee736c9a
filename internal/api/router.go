package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkotelnikov/taskboard/internal/api/handlers"
	appmw "github.com/mkotelnikov/taskboard/internal/api/middleware"
)

func NewRouter(
	taskService handlers.TaskUsecase,
	authService handlers.AuthUsecase,
	tokenValidator appmw.TokenValidator,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	taskHandler := handlers.NewTaskHandler(taskService)
	authHandler := handlers.NewAuthHandler(authService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.With(appmw.Auth(tokenValidator)).Post("/logout", authHandler.Logout)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(appmw.Auth(tokenValidator))
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Get("/audit", taskHandler.ListTaskHistory)
				r.Put("/", taskHandler.UpdateTask)
				r.Delete("/", taskHandler.DeleteTask)
			})
		})
	})

	return r
}
