package auction

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestStatusTransitionTable(t *testing.T) {
	g := NewWithT(t)

	all := []Status{StatusScheduled, StatusActive, StatusEnded, StatusSoldByBuyNow, StatusCancelled}
	legal := map[[2]Status]bool{
		{StatusScheduled, StatusActive}:    true,
		{StatusScheduled, StatusCancelled}: true,
		{StatusActive, StatusEnded}:        true,
		{StatusActive, StatusSoldByBuyNow}: true,
		{StatusActive, StatusCancelled}:    true,
		{StatusSoldByBuyNow, StatusActive}: true, // payment-failure recovery
	}

	for _, from := range all {
		for _, to := range all {
			g.Expect(CanTransition(from, to)).To(Equal(legal[[2]Status{from, to}]),
				"%s -> %s", from, to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	g := NewWithT(t)
	for _, from := range []Status{StatusEnded, StatusCancelled} {
		for _, to := range []Status{StatusScheduled, StatusActive, StatusEnded, StatusSoldByBuyNow, StatusCancelled} {
			g.Expect(CanTransition(from, to)).To(BeFalse(), "%s is terminal", from)
		}
	}
}
