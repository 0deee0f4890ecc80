package reference_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/poucet/noema-sub001/pkg/collection"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/reference"
	"github.com/poucet/noema-sub001/pkg/storage/inmemory"
)

var _ = Describe("Index", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		index  *reference.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		index = reference.NewIndex(driver, driver)
	})

	It("resolves backlinks from the target side", func() {
		from := entity.Ref{Kind: entity.KindDocument, ID: "d-1"}
		to := entity.Ref{Kind: entity.KindConversation, ID: "c-1"}

		Expect(index.Reference(ctx, from, to, "cites")).To(Succeed())

		links, err := index.Backlinks(ctx, to)
		Expect(err).NotTo(HaveOccurred())
		Expect(links).To(HaveLen(1))
		Expect(links[0].From).To(Equal(from))
		Expect(links[0].Relation).To(Equal("cites"))
	})

	It("stores identical edges once", func() {
		from := entity.Ref{Kind: entity.KindDocument, ID: "d-1"}
		to := entity.Ref{Kind: entity.KindConversation, ID: "c-1"}

		Expect(index.Reference(ctx, from, to, "cites")).To(Succeed())
		Expect(index.Reference(ctx, from, to, "cites")).To(Succeed())

		links, err := index.Backlinks(ctx, to)
		Expect(err).NotTo(HaveOccurred())
		Expect(links).To(HaveLen(1))
	})

	It("keeps edges with distinct relations separate", func() {
		from := entity.Ref{Kind: entity.KindDocument, ID: "d-1"}
		to := entity.Ref{Kind: entity.KindConversation, ID: "c-1"}

		Expect(index.Reference(ctx, from, to, "cites")).To(Succeed())
		Expect(index.Reference(ctx, from, to, "mentions")).To(Succeed())

		links, err := index.Backlinks(ctx, to)
		Expect(err).NotTo(HaveOccurred())
		Expect(links).To(HaveLen(2))
	})

	It("marks edges from deleted sources as dangling", func() {
		tree := collection.NewTree(driver)
		coll, err := tree.Create(ctx, "refs")
		Expect(err).NotTo(HaveOccurred())

		item, err := tree.AddItem(ctx, coll.ID, nil, 1, entity.Ref{Kind: entity.KindConversation, ID: "c-1"})
		Expect(err).NotTo(HaveOccurred())

		from := entity.Ref{Kind: entity.KindItem, ID: item.ID}
		to := entity.Ref{Kind: entity.KindConversation, ID: "c-1"}
		Expect(index.Reference(ctx, from, to, "pinned")).To(Succeed())

		links, err := index.Backlinks(ctx, to)
		Expect(err).NotTo(HaveOccurred())
		Expect(links[0].Dangling).To(BeFalse())

		// Deleting the collection removes the item; the edge stays and is
		// reported dangling.
		Expect(tree.Delete(ctx, coll.ID)).To(Succeed())

		links, err = index.Backlinks(ctx, to)
		Expect(err).NotTo(HaveOccurred())
		Expect(links).To(HaveLen(1))
		Expect(links[0].Dangling).To(BeTrue())
	})
})
