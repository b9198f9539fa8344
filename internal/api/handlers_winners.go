package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func (s *Server) registerWinners(r chi.Router) {
	r.Route("/winners", func(r chi.Router) {
		r.Get("/", s.handleListWinners)
		r.Post("/", s.handleRecordWinner)
		r.Get("/stats", s.handleWinnerStats)
		r.Get("/race/{raceId}", s.handleWinnerByRace)
		r.Post("/cleanup", s.handleCleanupWinners)
	})
}

func (s *Server) handleRecordWinner(w http.ResponseWriter, r *http.Request) {
	var in store.WinnerInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.store.RecordWinner(in)
	if err != nil {
		if isValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.LogError("Failed to record winner", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record winner")
		return
	}

	if s.opts.Notifier != nil {
		text := fmt.Sprintf("🏁 Race %s won by %s (prize %g, %s)",
			rec.RaceID, shortAddress(rec.WalletAddress), rec.PrizeAmount, rec.PaymentStatus)
		go func() {
			if err := s.opts.Notifier.Notify(context.WithoutCancel(r.Context()), text); err != nil {
				logging.LogWarn("Failed to send winner notification", zap.Error(err))
			}
		}()
	}

	writeJSON(w, http.StatusCreated, envelope{"success": true, "data": rec})
}

func (s *Server) handleListWinners(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var winners []store.WinnerRecord
	if wallet := q.Get("wallet"); wallet != "" {
		winners = s.store.WinnersByWallet(wallet)
		if limit := intParam(q.Get("limit"), 0); limit > 0 && limit < len(winners) {
			winners = winners[:limit]
		}
	} else {
		winners = s.store.Winners(intParam(q.Get("limit"), 0))
	}
	writeData(w, winners, envelope{"count": len(winners)})
}

func (s *Server) handleWinnerStats(w http.ResponseWriter, r *http.Request) {
	writeData(w, s.store.WinnerStats(), nil)
}

func (s *Server) handleWinnerByRace(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.WinnerByRace(chi.URLParam(r, "raceId"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Race not found")
		return
	}
	writeData(w, rec, nil)
}

func (s *Server) handleCleanupWinners(w http.ResponseWriter, r *http.Request) {
	keep := intParam(r.URL.Query().Get("keep"), store.DefaultMaxWinners)
	if keep < 0 {
		writeError(w, http.StatusBadRequest, "keep must not be negative")
		return
	}
	removed := s.store.CleanupWinners(keep)
	writeData(w, map[string]int{"removed": removed, "kept": len(s.store.Winners(0))}, nil)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func isValidation(err error) bool {
	var ve *store.ValidationError
	return errors.As(err, &ve)
}
