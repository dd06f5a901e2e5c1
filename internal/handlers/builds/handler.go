package builds

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/handlers/response"
)

// ApiHandler serves archived controller-mode build reports
type ApiHandler struct {
	Reports secondary.ReportRepository
	Logger  primary.Logger
}

func NewHandler(reports secondary.ReportRepository, logger primary.Logger) *ApiHandler {
	return &ApiHandler{Reports: reports, Logger: logger}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/builds/{runId}", api.GetBuild).Methods("GET")
}

func (api *ApiHandler) GetBuild(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(mux.Vars(r)["runId"])
	if err != nil {
		response.WriteError(w, response.ErrorMessage{Message: "invalid run id", StatusCode: http.StatusBadRequest})
		return
	}

	report, err := api.Reports.GetReport(r.Context(), runID)
	if err != nil {
		api.Logger.Error("Failed to get build report", "runId", runID, "error", err)
		response.WriteError(w, response.ErrorMessage{Message: "failed to get build report", StatusCode: http.StatusInternalServerError})
		return
	}
	if report == nil {
		response.WriteError(w, response.ErrorMessage{Message: "build not found", StatusCode: http.StatusNotFound})
		return
	}

	response.WriteSuccess(w, report)
}
