package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/betpool/internal/pool"
)

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

// ensureUser responde 201 quando cria e 200 quando o usuário já existia
func (a *API) ensureUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad json")
		return
	}
	u, created, err := a.engine.EnsureUser(r.Context(), req.ID, req.Name)
	if err != nil {
		a.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, u)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.engine.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := pool.DefaultLeaderboard
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	users, err := a.engine.Leaderboard(r.Context(), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) createEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad json")
		return
	}
	ev, err := a.engine.CreateEvent(r.Context(), req.Name, req.Options, req.EndsAt)
	if err != nil {
		a.writeError(w, err)
		return
	}
	view, err := a.engine.EventView(r.Context(), ev.ID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	list, err := a.engine.ListEvents(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getEvent(w http.ResponseWriter, r *http.Request) {
	view, err := a.engine.EventView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	view, err := a.engine.EventView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OddsResponse{
		EventID:  view.ID,
		Status:   view.Status,
		Odds:     view.Odds,
		Totals:   view.Totals,
		Pool:     view.Pool,
		Resolved: view.Resolved,
		Result:   view.Result,
	})
}

func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	bets, err := a.engine.EventBets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bets)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad json")
		return
	}
	bet, err := a.engine.PlaceBet(r.Context(), req.UserID, chi.URLParam(r, "id"), req.Choice, req.Amount)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

func (a *API) resolveEvent(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad json")
		return
	}
	sum, err := a.engine.ResolveEvent(r.Context(), chi.URLParam(r, "id"), req.Result)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
