package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/poucet/noema-sub001/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	Describe("Target", func() {
		It("uses the override directory when provided", func() {
			dir, err := m.Target(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(tmpDir))
		})

		It("creates the override directory when missing", func() {
			override := filepath.Join(tmpDir, "nested", ".noema")

			dir, err := m.Target(override)
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})
	})

	Describe("workspace state", func() {
		It("returns nil for a fresh workspace", func() {
			state, err := m.LoadWorkspaceState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("round-trips the active conversation and view", func() {
			saved := &dotdir.WorkspaceState{
				ConversationID: "c-1",
				ViewID:         "v-1",
				DocumentID:     "d-1",
			}
			Expect(m.SaveWorkspace(saved, tmpDir)).To(Succeed())

			loaded, err := m.LoadWorkspaceState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(saved))
		})

		It("rejects nil state", func() {
			Expect(m.SaveWorkspace(nil, tmpDir)).To(HaveOccurred())
		})

		It("clears the workspace state", func() {
			saved := &dotdir.WorkspaceState{ConversationID: "c-1", ViewID: "v-1"}
			Expect(m.SaveWorkspace(saved, tmpDir)).To(Succeed())

			Expect(m.ClearWorkspace(tmpDir)).To(Succeed())

			state, err := m.LoadWorkspaceState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("is a no-op to clear an already-clear workspace", func() {
			Expect(m.ClearWorkspace(tmpDir)).To(Succeed())
		})

		It("returns an error for corrupt state files", func() {
			path := filepath.Join(tmpDir, "workspace.json")
			Expect(os.WriteFile(path, []byte("{not json"), 0o600)).To(Succeed())

			_, err := m.LoadWorkspaceState(tmpDir)
			Expect(err).To(HaveOccurred())
		})
	})
})
