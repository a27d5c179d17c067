package router

import (
	"net/http"

	"github.com/lunevo/bidwire/internal/handlers"
)

// InitRoutes wires all HTTP routes.
func InitRoutes(projectHandler *handlers.ProjectHandler, bidHandler *handlers.BidHandler, eventHandler *handlers.EventHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler)

	mux.HandleFunc("POST /api/projects/new", projectHandler.CreateProject)
	mux.HandleFunc("GET /api/projects", projectHandler.GetProjects)
	mux.HandleFunc("GET /api/projects/{projectId}", projectHandler.GetProject)
	mux.HandleFunc("GET /api/projects/{projectId}/bids", bidHandler.GetProjectBids)

	mux.HandleFunc("POST /api/bids/new", bidHandler.CreateBid)
	mux.HandleFunc("POST /api/projects/{projectId}/bids/{bidId}/accept", bidHandler.AcceptBid)
	mux.HandleFunc("POST /api/projects/{projectId}/bids/{bidId}/reject", bidHandler.RejectBid)
	mux.HandleFunc("POST /api/projects/{projectId}/bids/{bidId}/counter", bidHandler.CounterBid)
	mux.HandleFunc("POST /api/bids/{bidId}/respond", bidHandler.RespondToCounter)
	mux.HandleFunc("POST /api/bids/{bidId}/withdraw", bidHandler.WithdrawBid)

	mux.HandleFunc("GET /api/events", eventHandler.Poll)

	return mux
}
