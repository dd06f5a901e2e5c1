package status

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/handlers"
)

// QueueStats is the part of the task queue the status API reads
type QueueStats interface {
	Len() int
}

// ResultSource is the part of the result table the status API reads
type ResultSource interface {
	All() []domain.TaskOutcome
	Succeeded() int
}

type ApiHandler struct {
	Queue   QueueStats
	Results ResultSource
}

func NewHandler(queue QueueStats, results ResultSource) *ApiHandler {
	return &ApiHandler{Queue: queue, Results: results}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/health", api.Health).Methods("GET")
	r.HandleFunc("/api/queue", api.GetQueue).Methods("GET")
	r.HandleFunc("/api/results", api.GetResults).Methods("GET")
}

func (api *ApiHandler) Health(w http.ResponseWriter, _ *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *ApiHandler) GetQueue(w http.ResponseWriter, _ *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, map[string]int{"pending": api.Queue.Len()})
}

func (api *ApiHandler) GetResults(w http.ResponseWriter, _ *http.Request) {
	outcomes := api.Results.All()
	handlers.ResponseWithJson(w, http.StatusOK, map[string]interface{}{
		"total":     len(outcomes),
		"succeeded": api.Results.Succeeded(),
		"results":   outcomes,
	})
}
