package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/api/openapi"
)

// HandlerFromMux регистрирует маршруты API на router.
// adminAuth оборачивает административные маршруты (кроме входа).
func HandlerFromMux(h *APIHandler, router chi.Router, adminAuth func(http.Handler) http.Handler) {
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Get("/files/{name}", h.GetFile)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", serveContract)
		r.Get("/operations", h.ListOperations)

		r.Post("/submissions", h.CreateSubmission)
		r.Route("/submissions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSubmission)
			r.Patch("/fields", h.UpdateSubmissionFields)
			r.Post("/events", h.FireSubmissionEvent)
			r.Put("/evidence/{kind}", h.AttachEvidence)
			r.Delete("/evidence/{kind}", h.DetachEvidence)
			r.Post("/commit", h.CommitSubmission)
		})

		r.Post("/admin/login", h.AdminLogin)
		r.Group(func(r chi.Router) {
			if adminAuth != nil {
				r.Use(adminAuth)
			}
			r.Get("/admin/claims", h.ListClaims)
			r.Get("/admin/claims/export/spreadsheet", h.ExportSpreadsheet)
			r.Get("/admin/claims/export/archive", h.ExportArchive)
			r.Get("/admin/claims/{key}", h.GetClaim)
			r.Delete("/admin/claims/{key}", h.DeleteClaim)
			r.Post("/admin/maintenance/orphans", h.SweepOrphans)
		})
	})
}

func serveContract(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapi.YAML())
}
