package handlers

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the owner endpoints on an authenticated router.
func RegisterRoutes(api fiber.Router, post *PostHandler, content *ContentHandler, platform *PlatformHandler) {
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/stats", post.Stats)
	api.Get("/posts/upcoming", post.Upcoming)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id/caption", post.UpdateCaption)
	api.Put("/posts/:id/reschedule", post.Reschedule)
	api.Post("/posts/:id/retry", post.Retry)
	api.Post("/posts/:id/cancel", post.Cancel)
	api.Post("/posts/:id/publish", post.PublishNow)
	api.Delete("/posts/:id", post.RemovePost)

	api.Post("/contents", content.Upload)

	api.Get("/accounts", platform.ListSocialAccounts)
	api.Get("/platforms", platform.ListPlatforms)
}
