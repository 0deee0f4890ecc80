package conversation_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/poucet/noema-sub001/pkg/content"
	"github.com/poucet/noema-sub001/pkg/conversation"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/eventstream"
	"github.com/poucet/noema-sub001/pkg/eventstream/memory"
	"github.com/poucet/noema-sub001/pkg/reference"
	"github.com/poucet/noema-sub001/pkg/storage/inmemory"
)

func userDraft(text string) conversation.Draft {
	return conversation.Draft{
		Text:   text,
		Origin: content.Origin{Producer: content.ProducerUser, UserID: "u-1"},
	}
}

func modelDraft(text string) conversation.Draft {
	return conversation.Draft{
		Text:   text,
		Origin: content.Origin{Producer: content.ProducerAssistant, ModelID: "m-1"},
	}
}

// completeTurn appends a turn with one closed alternative holding one message.
func completeTurn(ctx context.Context, g *conversation.Graph, convID string, role conversation.Role, text string) (*conversation.Turn, *conversation.Alternative) {
	turn, err := g.AddTurn(ctx, convID, role)
	Expect(err).NotTo(HaveOccurred())

	alt, err := g.AddAlternative(ctx, turn.ID, "m-1")
	Expect(err).NotTo(HaveOccurred())

	draft := userDraft(text)
	if role == conversation.RoleAssistant {
		draft = modelDraft(text)
	}
	_, err = g.AppendMessage(ctx, alt.ID, draft)
	Expect(err).NotTo(HaveOccurred())

	Expect(g.CloseAlternative(ctx, alt.ID)).To(Succeed())

	return turn, alt
}

var _ = Describe("Graph", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		graph  *conversation.Graph
		conv   *conversation.Conversation
		view   *conversation.View
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		graph = conversation.NewGraph(driver, driver)

		var err error
		conv, view, err = graph.CreateConversation(ctx, "test conversation")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("CreateConversation", func() {
		It("creates the default view alongside the conversation", func() {
			Expect(view.ConversationID).To(Equal(conv.ID))
			Expect(view.Name).To(Equal(conversation.DefaultViewName))

			views, err := graph.Views(ctx, conv.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(views).To(HaveLen(1))
		})
	})

	Describe("AddTurn", func() {
		It("assigns monotonically increasing sequence numbers", func() {
			first, err := graph.AddTurn(ctx, conv.ID, conversation.RoleUser)
			Expect(err).NotTo(HaveOccurred())

			second, err := graph.AddTurn(ctx, conv.ID, conversation.RoleAssistant)
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Seq).To(Equal(1))
			Expect(second.Seq).To(Equal(2))
		})

		It("fails for an unknown conversation", func() {
			_, err := graph.AddTurn(ctx, "missing", conversation.RoleUser)

			var nf entity.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})
	})

	Describe("AppendMessage", func() {
		It("interns the text and links the block", func() {
			turn, err := graph.AddTurn(ctx, conv.ID, conversation.RoleUser)
			Expect(err).NotTo(HaveOccurred())

			alt, err := graph.AddAlternative(ctx, turn.ID, "")
			Expect(err).NotTo(HaveOccurred())

			msg, err := graph.AppendMessage(ctx, alt.ID, userDraft("hello"))
			Expect(err).NotTo(HaveOccurred())

			block, err := driver.GetBlock(ctx, msg.ContentID)
			Expect(err).NotTo(HaveOccurred())
			Expect(block.Text).To(Equal("hello"))
		})

		It("dedupes identical text with the same origin", func() {
			turn, err := graph.AddTurn(ctx, conv.ID, conversation.RoleUser)
			Expect(err).NotTo(HaveOccurred())

			alt, err := graph.AddAlternative(ctx, turn.ID, "")
			Expect(err).NotTo(HaveOccurred())

			first, err := graph.AppendMessage(ctx, alt.ID, userDraft("same"))
			Expect(err).NotTo(HaveOccurred())
			second, err := graph.AppendMessage(ctx, alt.ID, userDraft("same"))
			Expect(err).NotTo(HaveOccurred())

			Expect(first.ContentID).To(Equal(second.ContentID))
			Expect(first.ID).NotTo(Equal(second.ID))
		})

		It("rejects appends to a closed alternative", func() {
			_, alt := completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "done")

			_, err := graph.AppendMessage(ctx, alt.ID, userDraft("late"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ResolvePath", func() {
		It("resolves a linear conversation in turn order", func() {
			completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "question")
			completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "answer")

			path, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveLen(2))
			Expect(path[0].Turn.Role).To(Equal(conversation.RoleUser))
			Expect(path[1].Turn.Role).To(Equal(conversation.RoleAssistant))
			Expect(path[1].Messages).To(HaveLen(1))
		})

		It("defaults to the most recently created closed alternative", func() {
			turn, _ := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "first try")

			retry, err := graph.AddAlternative(ctx, turn.ID, "m-2")
			Expect(err).NotTo(HaveOccurred())
			_, err = graph.AppendMessage(ctx, retry.ID, modelDraft("second try"))
			Expect(err).NotTo(HaveOccurred())
			Expect(graph.CloseAlternative(ctx, retry.ID)).To(Succeed())

			path, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveLen(1))
			Expect(path[0].Alternative.ID).To(Equal(retry.ID))
		})

		It("lets an explicit selection override the default", func() {
			turn, first := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "first try")

			retry, err := graph.AddAlternative(ctx, turn.ID, "m-2")
			Expect(err).NotTo(HaveOccurred())
			_, err = graph.AppendMessage(ctx, retry.ID, modelDraft("second try"))
			Expect(err).NotTo(HaveOccurred())
			Expect(graph.CloseAlternative(ctx, retry.ID)).To(Succeed())

			Expect(graph.Select(ctx, view.ID, turn.ID, first.ID)).To(Succeed())

			path, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(path[0].Alternative.ID).To(Equal(first.ID))
		})

		It("omits turns with only open alternatives", func() {
			completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "question")

			turn, err := graph.AddTurn(ctx, conv.ID, conversation.RoleAssistant)
			Expect(err).NotTo(HaveOccurred())
			_, err = graph.AddAlternative(ctx, turn.ID, "m-1")
			Expect(err).NotTo(HaveOccurred())

			path, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveLen(1))
		})

		It("excludes cancelled alternatives from the default pick", func() {
			turn, good := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "complete")

			aborted, err := graph.AddAlternative(ctx, turn.ID, "m-2")
			Expect(err).NotTo(HaveOccurred())
			_, err = graph.AppendMessage(ctx, aborted.ID, modelDraft("partial"))
			Expect(err).NotTo(HaveOccurred())
			Expect(graph.CancelAlternative(ctx, aborted.ID, "stream reset")).To(Succeed())

			path, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(path[0].Alternative.ID).To(Equal(good.ID))

			// The cancelled alternative stays addressable.
			alts, err := graph.AlternativesAt(ctx, turn.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(alts).To(HaveLen(2))
		})
	})

	Describe("Select", func() {
		It("rejects an open alternative", func() {
			turn, err := graph.AddTurn(ctx, conv.ID, conversation.RoleAssistant)
			Expect(err).NotTo(HaveOccurred())

			open, err := graph.AddAlternative(ctx, turn.ID, "m-1")
			Expect(err).NotTo(HaveOccurred())

			err = graph.Select(ctx, view.ID, turn.ID, open.ID)

			var notReady conversation.NotReadyError
			Expect(err).To(BeAssignableToTypeOf(notReady))
		})

		It("rejects an alternative from another turn", func() {
			_, first := completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "one")
			second, _ := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "two")

			err := graph.Select(ctx, view.ID, second.ID, first.ID)

			var invalid conversation.InvalidSelectionError
			Expect(err).To(BeAssignableToTypeOf(invalid))
		})

		It("rejects a turn from another conversation", func() {
			otherConv, _, err := graph.CreateConversation(ctx, "other")
			Expect(err).NotTo(HaveOccurred())
			otherTurn, otherAlt := completeTurn(ctx, graph, otherConv.ID, conversation.RoleUser, "elsewhere")

			err = graph.Select(ctx, view.ID, otherTurn.ID, otherAlt.ID)

			var foreign conversation.ForeignConversationError
			Expect(err).To(BeAssignableToTypeOf(foreign))
		})
	})

	Describe("Fork", func() {
		It("copies explicit selections up to the fork point", func() {
			turnA, altA := completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "a")
			turnB, altB := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "b")

			Expect(graph.Select(ctx, view.ID, turnA.ID, altA.ID)).To(Succeed())
			Expect(graph.Select(ctx, view.ID, turnB.ID, altB.ID)).To(Succeed())

			forked, err := graph.Fork(ctx, view.ID, turnA.ID, "branch")
			Expect(err).NotTo(HaveOccurred())
			Expect(forked.ForkedFrom).To(Equal(view.ID))

			sels, err := driver.Selections(ctx, forked.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(sels).To(HaveLen(1))
			Expect(sels[0].TurnID).To(Equal(turnA.ID))
		})

		It("diverges independently after the fork", func() {
			turn, first := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "first")

			retry, err := graph.AddAlternative(ctx, turn.ID, "m-2")
			Expect(err).NotTo(HaveOccurred())
			_, err = graph.AppendMessage(ctx, retry.ID, modelDraft("retry"))
			Expect(err).NotTo(HaveOccurred())
			Expect(graph.CloseAlternative(ctx, retry.ID)).To(Succeed())

			forked, err := graph.Fork(ctx, view.ID, turn.ID, "branch")
			Expect(err).NotTo(HaveOccurred())

			Expect(graph.Select(ctx, view.ID, turn.ID, first.ID)).To(Succeed())
			Expect(graph.Select(ctx, forked.ID, turn.ID, retry.ID)).To(Succeed())

			mainPath, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			forkPath, err := graph.ResolvePath(ctx, forked.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(mainPath[0].Alternative.ID).To(Equal(first.ID))
			Expect(forkPath[0].Alternative.ID).To(Equal(retry.ID))
		})

		It("keeps turns appended for one branch out of the other's path", func() {
			turnA, _ := completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "shared prefix")

			forked, err := graph.Fork(ctx, view.ID, turnA.ID, "branch")
			Expect(err).NotTo(HaveOccurred())

			before, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())

			// A turn produced for the forked branch only.
			turnB, altB := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "branch answer")
			Expect(graph.Select(ctx, forked.ID, turnB.ID, altB.ID)).To(Succeed())

			mainPath, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(mainPath).To(HaveLen(len(before)))
			Expect(mainPath[0].Turn.ID).To(Equal(turnA.ID))

			forkPath, err := graph.ResolvePath(ctx, forked.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(forkPath).To(HaveLen(2))
			Expect(forkPath[1].Alternative.ID).To(Equal(altB.ID))
		})

		It("adopts a later turn once the view selects at it", func() {
			turnA, _ := completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "shared prefix")

			_, err := graph.Fork(ctx, view.ID, turnA.ID, "branch")
			Expect(err).NotTo(HaveOccurred())

			turnB, altB := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "adopted answer")

			path, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveLen(1))

			Expect(graph.Select(ctx, view.ID, turnB.ID, altB.ID)).To(Succeed())

			path, err = graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveLen(2))
			Expect(path[1].Alternative.ID).To(Equal(altB.ID))
		})

		It("shares alternatives between views without copying", func() {
			turn, alt := completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "shared")

			forked, err := graph.Fork(ctx, view.ID, turn.ID, "branch")
			Expect(err).NotTo(HaveOccurred())

			mainPath, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			forkPath, err := graph.ResolvePath(ctx, forked.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(mainPath[0].Alternative.ID).To(Equal(alt.ID))
			Expect(forkPath[0].Alternative.ID).To(Equal(alt.ID))
		})
	})

	Describe("splice", func() {
		It("leaves downstream selections resolving to the same alternative", func() {
			turnA, _ := completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "original question")
			turnB, altB := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "answer")
			Expect(graph.Select(ctx, view.ID, turnB.ID, altB.ID)).To(Succeed())

			before, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(before).To(HaveLen(2))

			// Replace the upstream turn's content with a fresh alternative.
			spliced, err := graph.AddAlternative(ctx, turnA.ID, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = graph.AppendMessage(ctx, spliced.ID, userDraft("edited question"))
			Expect(err).NotTo(HaveOccurred())
			Expect(graph.CloseAlternative(ctx, spliced.ID)).To(Succeed())
			Expect(graph.Select(ctx, view.ID, turnA.ID, spliced.ID)).To(Succeed())

			path, err := graph.ResolvePath(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveLen(2))
			Expect(path[0].Alternative.ID).To(Equal(spliced.ID))
			Expect(path[1].Alternative.ID).To(Equal(before[1].Alternative.ID))
		})
	})

	Describe("Truncate", func() {
		It("drops selections past the given turn", func() {
			turnA, altA := completeTurn(ctx, graph, conv.ID, conversation.RoleUser, "a")
			turnB, altB := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "b")

			Expect(graph.Select(ctx, view.ID, turnA.ID, altA.ID)).To(Succeed())
			Expect(graph.Select(ctx, view.ID, turnB.ID, altB.ID)).To(Succeed())

			Expect(graph.Truncate(ctx, view.ID, turnA.ID)).To(Succeed())

			sels, err := driver.Selections(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(sels).To(HaveLen(1))
			Expect(sels[0].TurnID).To(Equal(turnA.ID))
		})
	})

	Describe("SpawnChild", func() {
		It("links the child back with a spawned_from edge", func() {
			_, alt := completeTurn(ctx, graph, conv.ID, conversation.RoleAssistant, "tangent source")

			refs := reference.NewIndex(driver, driver)
			graph = conversation.NewGraph(driver, driver, conversation.WithReferences(refs))

			child, _, err := graph.SpawnChild(ctx, alt.ID, "tangent")
			Expect(err).NotTo(HaveOccurred())

			links, err := refs.Backlinks(ctx, entity.Ref{Kind: entity.KindAlternative, ID: alt.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(HaveLen(1))
			Expect(links[0].From).To(Equal(entity.Ref{Kind: entity.KindConversation, ID: child.ID}))
			Expect(links[0].Relation).To(Equal(reference.RelationSpawnedFrom))
			Expect(links[0].Dangling).To(BeFalse())
		})
	})

	Describe("event publishing", func() {
		It("emits mutation events on the in-process stream", func() {
			pub := memory.NewPublisher(16)
			sub := pub.Subscribe()

			graph = conversation.NewGraph(driver, driver, conversation.WithPublisher(pub))

			turn, err := graph.AddTurn(ctx, conv.ID, conversation.RoleUser)
			Expect(err).NotTo(HaveOccurred())

			event := <-sub
			Expect(event.EventType).To(Equal(eventstream.EventTypeTurnAppended))
			Expect(event.Subject.ID).To(Equal(turn.ID))
			Expect(event.Scope.Conversation).To(Equal(conv.ID))
		})
	})
})
