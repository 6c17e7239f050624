package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter mounts the REST API, the live sync socket and the health check.
func NewRouter(api *API, ws *WSHandler) http.Handler {
	mux := chi.NewRouter()

	mux.Use(cors.AllowAll().Handler)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/ws", ws.ServeWS)

	mux.Route("/api/quizzes/{quizID}", func(r chi.Router) {
		r.Get("/", api.GetQuiz)
		r.Put("/", api.SaveQuiz)
		r.Post("/sessions", api.Present)
		r.Post("/generate", api.Generate)

		r.Post("/questions", api.AddQuestion)
		r.Put("/questions/{questionID}", api.UpdateQuestion)
		r.Delete("/questions/{questionID}", api.RemoveQuestion)
		r.Post("/questions/{questionID}/move", api.MoveQuestion)
		r.Post("/questions/{questionID}/media", api.AttachMedia)
	})

	mux.Route("/api/sessions/{code}", func(r chi.Router) {
		r.Get("/", api.GetSession)
		r.Get("/leaderboard", api.GetLeaderboard)
		r.Post("/participants", api.Join)
		r.Post("/answers", api.SubmitAnswer)

		r.Post("/start", api.hostCommand("start", api.service.Start))
		r.Post("/results", api.hostCommand("toggleResults", api.service.ToggleResults))
		r.Post("/advance", api.hostCommand("advance", api.service.Advance))
		r.Post("/final", api.ShowFinalResults)
		r.Post("/finish", api.hostCommand("finish", api.service.Finish))
	})

	return mux
}
