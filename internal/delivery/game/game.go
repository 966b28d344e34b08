package game

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tictacarm/internal/bootstrap"
	"tictacarm/internal/domain/game"
	errs "tictacarm/internal/errors"
	"tictacarm/internal/httpresponse"
	gameuc "tictacarm/internal/usecase/game"
	"tictacarm/internal/utils"
)

const (
	defaultArchivePage = 20
	maxArchivePage     = 100
)

type ArchiveReader interface {
	GetGameByID(ctx context.Context, id string) (game.Record, error)
	ListGames(ctx context.Context, limit int64) ([]game.Record, error)
}

type GameHandler struct {
	cfg     bootstrap.Config
	log     *zap.SugaredLogger
	gameUC  *gameuc.GameUseCase
	hub     *Hub
	archive ArchiveReader
}

func NewGameHandler(cfg bootstrap.Config, log *zap.SugaredLogger, gameUC *gameuc.GameUseCase, hub *Hub, archive ArchiveReader) *GameHandler {
	return &GameHandler{
		cfg:     cfg,
		log:     log,
		gameUC:  gameUC,
		hub:     hub,
		archive: archive,
	}
}

func (g *GameHandler) Routes(r chi.Router) {
	r.Get("/status", g.HandleStatus)
	r.Post("/set_difficulty", g.HandleSetDifficulty)
	r.Post("/move", g.HandleMove)
	r.Get("/reset", g.HandleReset)
	r.Post("/reset", g.HandleReset)
	r.Get("/ws", g.HandleWS)
	r.Get("/games", g.HandleListGames)
	r.Get("/games/{id}", g.HandleGetGame)
}

func (g *GameHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, g.gameUC.Snapshot())
}

func (g *GameHandler) HandleSetDifficulty(w http.ResponseWriter, r *http.Request) {
	var req game.DifficultyRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		g.log.Error("SetDifficulty: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}

	d, err := game.ParseDifficulty(req.Difficulty)
	if err != nil {
		g.log.Warnf("SetDifficulty: %v", err)
		httpresponse.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := g.gameUC.SetDifficulty(r.Context(), d)
	if err != nil {
		g.writeGameError(w, "SetDifficulty", err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, snap)
}

func (g *GameHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req game.MoveRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		g.log.Error("Move: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}
	if req.Index == nil {
		httpresponse.WriteError(w, http.StatusBadRequest, "index is required")
		return
	}

	// the arm must finish its move even if the phone drops the request
	ctx := context.WithoutCancel(r.Context())

	snap, err := g.gameUC.HumanMove(ctx, *req.Index)
	if err != nil {
		g.writeGameError(w, "Move", err)
		return
	}
	g.log.Infof("human played %d, winner %q", *req.Index, snap.Winner)
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, snap)
}

func (g *GameHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	snap := g.gameUC.Reset(context.WithoutCancel(r.Context()))
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, snap)
}

func (g *GameHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	g.hub.ServeWS(w, r, g.gameUC.Snapshot())
}

func (g *GameHandler) HandleListGames(w http.ResponseWriter, r *http.Request) {
	if g.archive == nil {
		httpresponse.WriteError(w, http.StatusServiceUnavailable, errs.ErrArchiveDisabled.Error())
		return
	}

	limit := int64(defaultArchivePage)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			httpresponse.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxArchivePage)
	}

	games, err := g.archive.ListGames(r.Context(), limit)
	if err != nil {
		g.log.Errorf("ListGames: %v", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, games)
}

func (g *GameHandler) HandleGetGame(w http.ResponseWriter, r *http.Request) {
	if g.archive == nil {
		httpresponse.WriteError(w, http.StatusServiceUnavailable, errs.ErrArchiveDisabled.Error())
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := g.archive.GetGameByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrGameNotFound) {
			httpresponse.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		g.log.Errorf("GetGame %s: %v", id, err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, rec)
}

func (g *GameHandler) writeGameError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, errs.ErrIllegalMove), errors.Is(err, errs.ErrUnknownDifficulty):
		g.log.Warnf("%s: %v", op, err)
		httpresponse.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		g.log.Errorf("%s: %v", op, err)
		httpresponse.WriteInternalErrorResponse(w)
	}
}
