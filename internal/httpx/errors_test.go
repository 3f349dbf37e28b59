package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
)

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) errBody {
	t.Helper()
	var body errBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestWriteErrStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{auction.ErrPriceBelowMinimum, http.StatusBadRequest},
		{auction.ErrInvalidTimeRange, http.StatusBadRequest},
		{auction.ErrBidTooLow, http.StatusBadRequest},
		{auction.ErrSelfBidding, http.StatusBadRequest},
		{auction.ErrNotActive, http.StatusConflict},
		{auction.ErrAlreadySold, http.StatusConflict},
		{auction.ErrBuyNowNotEnabled, http.StatusConflict},
		{auction.ErrBuyNowDisabled, http.StatusConflict},
		{auction.ErrBidNotCancelable, http.StatusConflict},
		{auction.ErrRecoveryFromNonSold, http.StatusConflict},
		{auction.IllegalTransition(auction.StatusEnded, auction.StatusActive), http.StatusConflict},
		{auction.ErrNotSeller, http.StatusForbidden},
		{auction.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v", tc.err), func(t *testing.T) {
			g := NewWithT(t)
			rec := httptest.NewRecorder()

			writeErr(rec, tc.err)

			g.Expect(rec.Code).To(Equal(tc.want))
			g.Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			var de *auction.Error
			g.Expect(errors.As(tc.err, &de)).To(BeTrue())
			g.Expect(decodeErr(t, rec).Code).To(Equal(de.Code))
		})
	}
}

func TestWriteErrWrapped(t *testing.T) {
	g := NewWithT(t)
	rec := httptest.NewRecorder()

	writeErr(rec, fmt.Errorf("place bid: %w", auction.ErrBidTooLow))

	g.Expect(rec.Code).To(Equal(http.StatusBadRequest))
	g.Expect(decodeErr(t, rec).Code).To(Equal(auction.ErrBidTooLow.Code))
}

func TestWriteErrUnknown(t *testing.T) {
	g := NewWithT(t)
	rec := httptest.NewRecorder()

	writeErr(rec, errors.New("pool exhausted"))

	g.Expect(rec.Code).To(Equal(http.StatusInternalServerError))
	g.Expect(decodeErr(t, rec).Code).To(Equal("INTERNAL"))
}
