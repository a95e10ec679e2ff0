package http

import (
	"net/http"

	"brewlog/internal/achievement"
	"brewlog/internal/auth"
	"brewlog/internal/config"
	"brewlog/internal/draft"
	"brewlog/internal/http/handler"
	mw "brewlog/internal/http/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Config  config.Config
	DB      *gorm.DB
	JWT     *auth.JWT
	Drafts  *draft.Registry
	Records handler.Records
	Catalog achievement.Catalog
	Log     *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLog(d.Log))
	r.Use(chimw.Recoverer)

	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(d.Config.CORSAllowedOrigins, d.Config.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT, Log: d.Log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	// taxonomies are static and public
	th := &handler.TaxonomyHandler{}
	r.Get("/taxonomy/{name}", th.Get)
	r.Post("/taxonomy/{name}/select", th.Select)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))
		mountAuthed(r, d)
	})

	return r
}

// mountAuthed registers the per-user routes. Callers must have put a user
// id in the request context.
func mountAuthed(r chi.Router, d Deps) {
	me := &handler.MeHandler{Drafts: d.Drafts}
	r.Get("/me", me.Me)

	dh := &handler.DraftHandler{Drafts: d.Drafts, Records: d.Records, Log: d.Log}
	r.Route("/drafts", func(r chi.Router) {
		r.Post("/", dh.Start)
		r.Get("/current", dh.Current)
		r.Patch("/current", dh.Save)
		r.Delete("/current", dh.Discard)
		r.Post("/current/next", dh.Next)
		r.Post("/current/back", dh.Back)
		r.Post("/current/autosave", dh.Autosave)
		r.Get("/current/metadata", dh.Metadata)
		r.Post("/current/complete", dh.Complete)
	})

	rh := &handler.RecordHandler{Records: d.Records, Log: d.Log}
	r.Route("/records", func(r chi.Router) {
		r.Get("/", rh.List)
		r.Get("/{id}", rh.Get)
		r.Delete("/{id}", rh.Delete)
		r.Post("/{id}/share", rh.Share)
	})
	r.Get("/stats", rh.Stats)

	ach := &handler.AchievementHandler{Records: d.Records, Catalog: d.Catalog, Log: d.Log}
	r.Route("/achievements", func(r chi.Router) {
		r.Get("/", ach.List)
		r.Get("/next", ach.Next)
		r.Get("/notifications", ach.Notifications)
	})
}
