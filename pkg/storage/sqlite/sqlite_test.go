package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"github.com/poucet/noema-sub001/pkg/content"
	"github.com/poucet/noema-sub001/pkg/conversation"
	"github.com/poucet/noema-sub001/pkg/document"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/reference"
	"github.com/poucet/noema-sub001/pkg/storage/sqlite"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *sqlite.Driver
	)

	userOrigin := content.Origin{Producer: content.ProducerUser, UserID: "u-1"}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("New", func() {
		It("creates a driver with a file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "test.db")

			s, err := sqlite.New(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("blocks", func() {
		It("stores and retrieves a block", func() {
			block := content.NewBlock("hello", "", userOrigin)

			isNew, err := driver.PutBlock(ctx, block)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			retrieved, err := driver.GetBlock(ctx, block.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.ID).To(Equal(block.ID))
			Expect(retrieved.Text).To(Equal("hello"))
			Expect(retrieved.Origin).To(Equal(userOrigin))
		})

		It("is idempotent for duplicate puts", func() {
			block := content.NewBlock("hello", "", userOrigin)

			isNew, err := driver.PutBlock(ctx, block)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			isNew, err = driver.PutBlock(ctx, block)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())
		})

		It("returns a typed error for unknown ids", func() {
			_, err := driver.GetBlock(ctx, "nonexistent")

			var nf entity.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})

		It("deletes blocks and reports the count", func() {
			a := content.NewBlock("a", "", userOrigin)
			b := content.NewBlock("b", "", userOrigin)
			_, err := driver.PutBlock(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.PutBlock(ctx, b)
			Expect(err).NotTo(HaveOccurred())

			deleted, err := driver.DeleteBlocks(ctx, []string{a.ID, b.ID, "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(2))
		})
	})

	Describe("assets", func() {
		It("round-trips binary payloads", func() {
			asset := content.NewAsset([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png", userOrigin)

			isNew, err := driver.PutAsset(ctx, asset)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			retrieved, err := driver.GetAsset(ctx, asset.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Data).To(Equal(asset.Data))
			Expect(retrieved.MediaType).To(Equal("image/png"))
		})
	})

	Describe("conversations", func() {
		var conv *conversation.Conversation

		BeforeEach(func() {
			conv = &conversation.Conversation{
				ID:        uuid.NewString(),
				Title:     "test",
				CreatedAt: time.Now().UTC(),
			}
			Expect(driver.CreateConversation(ctx, conv)).To(Succeed())
		})

		It("assigns turn sequence numbers on append", func() {
			first := &conversation.Turn{ID: uuid.NewString(), ConversationID: conv.ID, Role: conversation.RoleUser, CreatedAt: time.Now().UTC()}
			second := &conversation.Turn{ID: uuid.NewString(), ConversationID: conv.ID, Role: conversation.RoleAssistant, CreatedAt: time.Now().UTC()}

			Expect(driver.AppendTurn(ctx, first)).To(Succeed())
			Expect(driver.AppendTurn(ctx, second)).To(Succeed())

			Expect(first.Seq).To(Equal(1))
			Expect(second.Seq).To(Equal(2))

			turns, err := driver.Turns(ctx, conv.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].ID).To(Equal(first.ID))
		})

		It("persists selections per view and turn", func() {
			view := &conversation.View{ID: uuid.NewString(), ConversationID: conv.ID, Name: "main", CreatedAt: time.Now().UTC()}
			Expect(driver.CreateView(ctx, view)).To(Succeed())

			turn := &conversation.Turn{ID: uuid.NewString(), ConversationID: conv.ID, Role: conversation.RoleUser, CreatedAt: time.Now().UTC()}
			Expect(driver.AppendTurn(ctx, turn)).To(Succeed())

			Expect(driver.UpsertSelection(ctx, &conversation.Selection{
				ViewID: view.ID, TurnID: turn.ID, AlternativeID: "a-1", TurnSeq: turn.Seq,
			})).To(Succeed())
			Expect(driver.UpsertSelection(ctx, &conversation.Selection{
				ViewID: view.ID, TurnID: turn.ID, AlternativeID: "a-2", TurnSeq: turn.Seq,
			})).To(Succeed())

			sels, err := driver.Selections(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(sels).To(HaveLen(1))
			Expect(sels[0].AlternativeID).To(Equal("a-2"))
		})

		It("round-trips the view frontier", func() {
			view := &conversation.View{ID: uuid.NewString(), ConversationID: conv.ID, Name: "main", CreatedAt: time.Now().UTC()}
			Expect(driver.CreateView(ctx, view)).To(Succeed())

			stored, err := driver.GetView(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.FrontierSeq).To(Equal(0))

			Expect(driver.SetViewFrontier(ctx, view.ID, 3)).To(Succeed())

			stored, err = driver.GetView(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.FrontierSeq).To(Equal(3))
		})

		It("rejects a frontier update for an unknown view", func() {
			err := driver.SetViewFrontier(ctx, uuid.NewString(), 1)

			var nf entity.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})

		It("closes alternatives with their failure state", func() {
			turn := &conversation.Turn{ID: uuid.NewString(), ConversationID: conv.ID, Role: conversation.RoleAssistant, CreatedAt: time.Now().UTC()}
			Expect(driver.AppendTurn(ctx, turn)).To(Succeed())

			alt := &conversation.Alternative{ID: uuid.NewString(), TurnID: turn.ID, ConversationID: conv.ID, CreatedAt: time.Now().UTC()}
			Expect(driver.CreateAlternative(ctx, alt)).To(Succeed())

			Expect(driver.CloseAlternative(ctx, alt.ID, true, "cancelled")).To(Succeed())

			stored, err := driver.GetAlternative(ctx, alt.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Closed).To(BeTrue())
			Expect(stored.Incomplete).To(BeTrue())
			Expect(stored.Error).To(Equal("cancelled"))
			Expect(stored.ClosedAt).NotTo(BeNil())
		})
	})

	Describe("documents", func() {
		It("advances root and current pointers on commit", func() {
			doc := &document.Document{ID: uuid.NewString(), Name: "notes", CreatedAt: time.Now().UTC()}
			Expect(driver.CreateDocument(ctx, doc)).To(Succeed())

			first := &document.Revision{ID: uuid.NewString(), DocumentID: doc.ID, ContentID: contentID(ctx, driver, "v1"), CreatedAt: time.Now().UTC()}
			Expect(driver.CommitRevision(ctx, first)).To(Succeed())

			second := &document.Revision{ID: uuid.NewString(), DocumentID: doc.ID, ParentID: &first.ID, ContentID: contentID(ctx, driver, "v2"), CreatedAt: time.Now().UTC()}
			Expect(driver.CommitRevision(ctx, second)).To(Succeed())

			stored, err := driver.GetDocument(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.RootRevisionID).To(Equal(first.ID))
			Expect(stored.CurrentRevisionID).To(Equal(second.ID))
		})
	})

	Describe("references", func() {
		It("stores edges once and orders backlinks by creation time", func() {
			from := entity.Ref{Kind: entity.KindDocument, ID: "d-1"}
			to := entity.Ref{Kind: entity.KindConversation, ID: "c-1"}

			edge := &reference.Edge{From: from, To: to, Relation: "cites", CreatedAt: time.Now().UTC()}
			Expect(driver.PutReference(ctx, edge)).To(Succeed())
			Expect(driver.PutReference(ctx, edge)).To(Succeed())

			links, err := driver.Backlinks(ctx, to)
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(HaveLen(1))
			Expect(links[0].From).To(Equal(from))
		})
	})

	Describe("Exists", func() {
		It("checks entity presence across tables", func() {
			conv := &conversation.Conversation{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
			Expect(driver.CreateConversation(ctx, conv)).To(Succeed())

			ok, err := driver.Exists(ctx, entity.Ref{Kind: entity.KindConversation, ID: conv.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = driver.Exists(ctx, entity.Ref{Kind: entity.KindDocument, ID: "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})
})

// contentID interns a block and returns its id, for revisions that need a
// valid content reference.
func contentID(ctx context.Context, driver *sqlite.Driver, text string) string {
	block := content.NewBlock(text, "", content.Origin{Producer: content.ProducerUser, UserID: "u-1"})
	_, err := driver.PutBlock(ctx, block)
	Expect(err).NotTo(HaveOccurred())
	return block.ID
}
