package document_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/poucet/noema-sub001/pkg/content"
	"github.com/poucet/noema-sub001/pkg/document"
	"github.com/poucet/noema-sub001/pkg/storage/inmemory"
)

var _ = Describe("Chain", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		chain  *document.Chain
		doc    *document.Document
	)

	authored := content.Origin{Producer: content.ProducerUser, UserID: "u-1"}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		chain = document.NewChain(driver, driver)

		var err error
		doc, err = chain.Create(ctx, "notes")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Commit", func() {
		It("sets root and current on the first revision", func() {
			rev, err := chain.Commit(ctx, doc.ID, "v1", authored)
			Expect(err).NotTo(HaveOccurred())
			Expect(rev.ParentID).To(BeNil())

			got, err := chain.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.RootRevisionID).To(Equal(rev.ID))
			Expect(got.CurrentRevisionID).To(Equal(rev.ID))
		})

		It("chains each revision to the previous head", func() {
			first, err := chain.Commit(ctx, doc.ID, "v1", authored)
			Expect(err).NotTo(HaveOccurred())

			second, err := chain.Commit(ctx, doc.ID, "v2", authored)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ParentID).NotTo(BeNil())
			Expect(*second.ParentID).To(Equal(first.ID))

			got, err := chain.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.RootRevisionID).To(Equal(first.ID))
			Expect(got.CurrentRevisionID).To(Equal(second.ID))
		})

		It("interns revision content by origin", func() {
			rev, err := chain.Commit(ctx, doc.ID, "draft text", authored)
			Expect(err).NotTo(HaveOccurred())

			block, err := driver.GetBlock(ctx, rev.ContentID)
			Expect(err).NotTo(HaveOccurred())
			Expect(block.Text).To(Equal("draft text"))
		})
	})

	Describe("Branch", func() {
		It("creates a revision off a non-head parent without moving the pointer", func() {
			first, err := chain.Commit(ctx, doc.ID, "v1", authored)
			Expect(err).NotTo(HaveOccurred())
			second, err := chain.Commit(ctx, doc.ID, "v2", authored)
			Expect(err).NotTo(HaveOccurred())

			branch, err := chain.Branch(ctx, first.ID, "v1b", authored)
			Expect(err).NotTo(HaveOccurred())
			Expect(*branch.ParentID).To(Equal(first.ID))

			got, err := chain.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CurrentRevisionID).To(Equal(second.ID))
		})
	})

	Describe("Checkout", func() {
		It("moves the current pointer to an older revision", func() {
			first, err := chain.Commit(ctx, doc.ID, "v1", authored)
			Expect(err).NotTo(HaveOccurred())
			_, err = chain.Commit(ctx, doc.ID, "v2", authored)
			Expect(err).NotTo(HaveOccurred())

			Expect(chain.Checkout(ctx, doc.ID, first.ID)).To(Succeed())

			got, err := chain.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CurrentRevisionID).To(Equal(first.ID))
		})

		It("rejects a revision from another document", func() {
			_, err := chain.Commit(ctx, doc.ID, "v1", authored)
			Expect(err).NotTo(HaveOccurred())

			other, err := chain.Create(ctx, "other")
			Expect(err).NotTo(HaveOccurred())
			foreign, err := chain.Commit(ctx, other.ID, "elsewhere", authored)
			Expect(err).NotTo(HaveOccurred())

			err = chain.Checkout(ctx, doc.ID, foreign.ID)

			var fre document.ForeignRevisionError
			Expect(err).To(BeAssignableToTypeOf(fre))
		})

		It("lets new commits branch off the checked-out revision", func() {
			first, err := chain.Commit(ctx, doc.ID, "v1", authored)
			Expect(err).NotTo(HaveOccurred())
			second, err := chain.Commit(ctx, doc.ID, "v2", authored)
			Expect(err).NotTo(HaveOccurred())

			Expect(chain.Checkout(ctx, doc.ID, first.ID)).To(Succeed())

			third, err := chain.Commit(ctx, doc.ID, "v3", authored)
			Expect(err).NotTo(HaveOccurred())
			Expect(*third.ParentID).To(Equal(first.ID))

			// The superseded head stays addressable.
			_, err = driver.GetRevision(ctx, second.ID)
			Expect(err).NotTo(HaveOccurred())

			revs, err := driver.RevisionsByDocument(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(revs).To(HaveLen(3))
		})
	})

	Describe("History", func() {
		It("walks from current back to root", func() {
			first, err := chain.Commit(ctx, doc.ID, "v1", authored)
			Expect(err).NotTo(HaveOccurred())
			second, err := chain.Commit(ctx, doc.ID, "v2", authored)
			Expect(err).NotTo(HaveOccurred())
			third, err := chain.Commit(ctx, doc.ID, "v3", authored)
			Expect(err).NotTo(HaveOccurred())

			history, err := chain.History(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(3))
			Expect(history[0].ID).To(Equal(third.ID))
			Expect(history[1].ID).To(Equal(second.ID))
			Expect(history[2].ID).To(Equal(first.ID))
		})

		It("is empty for a document with no revisions", func() {
			history, err := chain.History(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(BeEmpty())
		})
	})
})
