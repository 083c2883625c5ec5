package handlers

import (
	"net/http"

	"github.com/arenakit/competition-system/services"
)

type LadderHandler struct {
	ladderService services.LadderService
}

func NewLadderHandler(ladderService services.LadderService) *LadderHandler {
	return &LadderHandler{ladderService: ladderService}
}

func (h *LadderHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	ladderID, err := getIDFromURL(r, "ladderID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.ladderService.Standings(r.Context(), ladderID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
