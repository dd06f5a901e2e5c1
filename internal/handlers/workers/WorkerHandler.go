package workers

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/distbuild.net/internal/core/services/worker"
	"gitlab.com/distbuild.net/internal/handlers"
)

type ApiHandler struct {
	WorkerService worker.IWorkerRegistrationService
}

func NewHandler(WorkerService worker.IWorkerRegistrationService) *ApiHandler {
	return &ApiHandler{
		WorkerService: WorkerService,
	}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/workers", api.GetWorkers).Methods("GET")
}

func (api *ApiHandler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := api.WorkerService.GetAllWorkers(r.Context())
	if err != nil {
		handlers.ResponseError(w, "Failed to get workers", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, map[string]interface{}{"workers": workers})
}
