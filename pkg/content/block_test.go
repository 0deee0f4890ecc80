package content_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/poucet/noema-sub001/pkg/content"
)

var _ = Describe("NewBlock", func() {
	userOrigin := content.Origin{Producer: content.ProducerUser, UserID: "u-1"}

	It("computes a deterministic id", func() {
		a := content.NewBlock("hello", "", userOrigin)
		b := content.NewBlock("hello", "", userOrigin)

		Expect(a.ID).NotTo(BeEmpty())
		Expect(a.ID).To(Equal(b.ID))
		Expect(a.Digest).To(Equal(b.Digest))
	})

	It("gives identical text from different origins distinct ids", func() {
		user := content.NewBlock("same words", "", userOrigin)
		model := content.NewBlock("same words", "", content.Origin{
			Producer: content.ProducerAssistant,
			ModelID:  "m-1",
		})

		Expect(user.ID).NotTo(Equal(model.ID))
		Expect(user.Digest).To(Equal(model.Digest))
	})

	It("distinguishes edits by parent block", func() {
		original := content.NewBlock("draft", "", userOrigin)

		edited := content.NewBlock("draft", "", content.Origin{
			Producer: content.ProducerUser,
			UserID:   "u-1",
			ParentID: original.ID,
		})

		Expect(edited.ID).NotTo(Equal(original.ID))
	})

	It("defaults the media type to text/plain", func() {
		block := content.NewBlock("hello", "", userOrigin)
		Expect(block.MediaType).To(Equal("text/plain"))

		md := content.NewBlock("# hello", "text/markdown", userOrigin)
		Expect(md.MediaType).To(Equal("text/markdown"))
	})

	It("changes the id when the text changes", func() {
		a := content.NewBlock("one", "", userOrigin)
		b := content.NewBlock("two", "", userOrigin)

		Expect(a.ID).NotTo(Equal(b.ID))
	})
})

var _ = Describe("NewAsset", func() {
	It("addresses assets by bytes alone", func() {
		a := content.NewAsset([]byte{1, 2, 3}, "image/png", content.Origin{Producer: content.ProducerUser})
		b := content.NewAsset([]byte{1, 2, 3}, "image/png", content.Origin{Producer: content.ProducerImport})

		Expect(a.ID).To(Equal(b.ID))
	})

	It("defaults the media type to octet-stream", func() {
		asset := content.NewAsset([]byte("x"), "", content.Origin{})
		Expect(asset.MediaType).To(Equal("application/octet-stream"))
	})
})
