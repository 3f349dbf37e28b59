package orders

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestOrderTransitions(t *testing.T) {
	g := NewWithT(t)

	g.Expect(CanTransition(StatusPending, StatusCompleted)).To(BeTrue())
	g.Expect(CanTransition(StatusPending, StatusCancelled)).To(BeTrue())

	// completed and cancelled are terminal
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusCompleted, StatusCancelled} {
			g.Expect(CanTransition(from, to)).To(BeFalse(), "%s -> %s", from, to)
		}
	}
}
