package controllers

import (
	"net/http"
	"strings"

	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/internal/address"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

const maxAddressQueryLen = 200

// AddressSuggest returns autocomplete candidates for ?q=. Clients pass the
// same ?session= for every keystroke of one lookup.
func AddressSuggest(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("address lookup"))
			return
		}
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if len(q) < 3 || len(q) > maxAddressQueryLen {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "q must be between 3 and 200 characters"))
			return
		}
		suggestions, err := svc.Suggest(r.Context(), q, r.URL.Query().Get("session"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"suggestions": suggestions})
	}
}

func AddressResolve(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("address lookup"))
			return
		}
		placeID := strings.TrimSpace(r.URL.Query().Get("place_id"))
		if placeID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "place_id is required"))
			return
		}
		addr, err := svc.Resolve(r.Context(), placeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, addr)
	}
}
