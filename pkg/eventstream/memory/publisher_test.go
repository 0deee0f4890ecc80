package memory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/eventstream"
	"github.com/poucet/noema-sub001/pkg/eventstream/memory"
)

func turnEvent(id string) *eventstream.Event {
	return eventstream.New(
		eventstream.EventTypeTurnAppended,
		entity.Ref{Kind: entity.KindTurn, ID: id},
		eventstream.Scope{Conversation: "c-1"},
	)
}

var _ = Describe("Publisher", func() {
	var (
		ctx context.Context
		pub *memory.Publisher
	)

	BeforeEach(func() {
		ctx = context.Background()
		pub = memory.NewPublisher(4)
	})

	AfterEach(func() {
		pub.Close()
	})

	It("fans events out to every subscriber", func() {
		a := pub.Subscribe()
		b := pub.Subscribe()

		event := turnEvent("t-1")
		Expect(pub.Publish(ctx, event)).To(Succeed())

		Expect(<-a).To(Equal(event))
		Expect(<-b).To(Equal(event))
	})

	It("rejects nil events", func() {
		err := pub.Publish(ctx, nil)
		Expect(err).To(MatchError(eventstream.ErrNilEvent))
	})

	It("drops events for subscribers with full buffers", func() {
		slow := pub.Subscribe()

		for i := 0; i < 6; i++ {
			Expect(pub.Publish(ctx, turnEvent("t"))).To(Succeed())
		}

		// Buffer holds 4; the overflow was dropped, not blocked on.
		Expect(slow).To(HaveLen(4))
	})

	It("closes subscriber channels on Close", func() {
		sub := pub.Subscribe()

		Expect(pub.Close()).To(Succeed())

		_, open := <-sub
		Expect(open).To(BeFalse())
	})

	It("drops publishes after Close without error", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(pub.Publish(ctx, turnEvent("t-1"))).To(Succeed())
	})

	It("hands closed channels to late subscribers", func() {
		Expect(pub.Close()).To(Succeed())

		sub := pub.Subscribe()
		_, open := <-sub
		Expect(open).To(BeFalse())
	})
})
