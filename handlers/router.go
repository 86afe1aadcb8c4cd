package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/camden-git/clipcraft/config"
)

const requestTimeout = 60 * time.Second

// Router holds what NewRouter mounts.
type Router struct {
	Cfg     config.Config
	Log     *zap.Logger
	Frames  *FramesHandler
	Videos  *VideosHandler
	WS      http.HandlerFunc
	Metrics http.Handler
}

func NewRouter(rt Router) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   rt.Cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(rt.Log))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	r.Get("/health", Health)
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}
	r.Get("/results/*", AssetServer("/results/", rt.Cfg.ResultsDir, rt.Log))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", Health)
		r.Get("/config", ConfigHandler(rt.Cfg))
		if rt.WS != nil {
			r.Get("/ws", rt.WS)
		}

		r.Route("/videos", func(r chi.Router) {
			// uploads are bounded by MAX_UPLOAD_SIZE, not a deadline
			r.Post("/upload", rt.Videos.Upload)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))
				r.Get("/", rt.Videos.List)
				r.Get("/{video_id}", rt.Videos.Get)
				r.Delete("/{video_id}", rt.Videos.Delete)
			})
		})

		r.Route("/frames", func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Post("/extract", rt.Frames.Extract)
			r.Get("/task/{task_id}", rt.Frames.GetTask)
			r.Post("/select", rt.Frames.Select)
			r.Post("/unselect", rt.Frames.Unselect)
			r.Get("/debug/{video_id}", rt.Frames.Debug)
			r.Get("/{video_id}", rt.Frames.ListFrames)
			r.Get("/{video_id}/selected", rt.Frames.ListSelected)
			r.Delete("/{video_id}", rt.Frames.DeleteFrames)
		})
	})

	return r
}
