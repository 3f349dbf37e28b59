package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
)

type errBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// statusFor maps stable domain error codes to HTTP statuses: validation 400,
// state and policy conflicts 409, ownership 403, missing rows 404.
var statusFor = map[string]int{
	auction.ErrPriceBelowMinimum.Code:   http.StatusBadRequest,
	auction.ErrInvalidTimeRange.Code:    http.StatusBadRequest,
	auction.ErrBidTooLow.Code:           http.StatusBadRequest,
	auction.ErrSelfBidding.Code:         http.StatusBadRequest,
	auction.ErrIllegalTransition.Code:   http.StatusConflict,
	auction.ErrNotActive.Code:           http.StatusConflict,
	auction.ErrAlreadySold.Code:         http.StatusConflict,
	auction.ErrBuyNowNotEnabled.Code:    http.StatusConflict,
	auction.ErrBuyNowDisabled.Code:      http.StatusConflict,
	auction.ErrBidNotCancelable.Code:    http.StatusConflict,
	auction.ErrRecoveryFromNonSold.Code: http.StatusConflict,
	auction.ErrNotSeller.Code:           http.StatusForbidden,
	auction.ErrNotFound.Code:            http.StatusNotFound,
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	var de *auction.Error
	if errors.As(err, &de) {
		code, ok := statusFor[de.Code]
		if !ok {
			code = http.StatusInternalServerError
		}
		writeJSON(w, code, errBody{Code: de.Code, Error: de.Msg})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errBody{Code: "INTERNAL", Error: err.Error()})
}
