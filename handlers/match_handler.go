package handlers

import (
	"errors"
	"net"
	"net/http"

	"github.com/arenakit/competition-system/models"
	"github.com/arenakit/competition-system/services"
	"github.com/go-chi/chi/v5"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

type reportRequest struct {
	Side    int    `json:"side"`
	Result  string `json:"result"`
	Comment string `json:"comment"`
}

type confirmRequest struct {
	Side    int    `json:"side"`
	Comment string `json:"comment"`
}

type disputeRequest struct {
	Side int `json:"side"`
}

func (h *MatchHandler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Get(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ReportMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input reportRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	side, err := parseSide(input.Side)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Report(r.Context(), matchID, side, models.SideResult(input.Result), input.Comment, clientIP(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ConfirmMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input confirmRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	side, err := parseSide(input.Side)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Confirm(r.Context(), matchID, side, input.Comment, clientIP(r))
	if err != nil {
		// The match is confirmed even when standings or bracket updates
		// fail; report the match state along with the failure.
		if errors.Is(err, services.ErrProgressionFailed) {
			writeJSON(w, http.StatusOK, jsonResponse{"match": match, "warning": err.Error()}, nil)
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) DisputeMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input disputeRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	side, err := parseSide(input.Side)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Dispute(r.Context(), matchID, side, clientIP(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ClearMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Clear(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ConfirmByHashHandler is the magic-link endpoint: the hash is the
// credential, no authenticated identity is required.
func (h *MatchHandler) ConfirmByHashHandler(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	match, err := h.matchService.ConfirmByHash(r.Context(), hash)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConfirmLinkInvalid):
			errorResponse(w, r, http.StatusNotFound, "invalid link")
			return
		case errors.Is(err, services.ErrMatchAlreadyConfirmed):
			writeJSON(w, http.StatusOK, jsonResponse{"match": match, "message": "already confirmed"}, nil)
			return
		case errors.Is(err, services.ErrProgressionFailed):
			writeJSON(w, http.StatusOK, jsonResponse{"match": match, "warning": err.Error()}, nil)
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match, "message": "match confirmed"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func parseSide(raw int) (models.MatchSide, error) {
	switch raw {
	case 1:
		return models.SideOne, nil
	case 2:
		return models.SideTwo, nil
	}
	return 0, errors.New("side must be 1 or 2")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
