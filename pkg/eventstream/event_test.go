package eventstream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/eventstream"
)

var _ = Describe("New", func() {
	It("fills in schema version, id, and timestamp", func() {
		subject := entity.Ref{Kind: entity.KindTurn, ID: "t-1"}
		scope := eventstream.Scope{Conversation: "c-1"}

		event := eventstream.New(eventstream.EventTypeTurnAppended, subject, scope)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeTurnAppended))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.EmittedAt).NotTo(BeZero())
		Expect(event.Subject).To(Equal(subject))
		Expect(event.Scope.Conversation).To(Equal("c-1"))
	})

	It("assigns a fresh id per event", func() {
		subject := entity.Ref{Kind: entity.KindTurn, ID: "t-1"}

		a := eventstream.New(eventstream.EventTypeTurnAppended, subject, eventstream.Scope{})
		b := eventstream.New(eventstream.EventTypeTurnAppended, subject, eventstream.Scope{})

		Expect(a.EventID).NotTo(Equal(b.EventID))
	})
})
