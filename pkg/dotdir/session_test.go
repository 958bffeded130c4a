package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-session-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns nil when no session exists", func() {
		state, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round-trips a session", func() {
		state := &dotdir.SessionState{
			Model: "gpt-4o",
			Turns: []dotdir.SessionTurn{
				{Role: "user", Content: "What is contextual retrieval?"},
				{Role: "assistant", Content: "Prepending chunk context before embedding."},
			},
		}
		Expect(m.SaveSession(state, tmpDir)).To(Succeed())

		loaded, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Model).To(Equal("gpt-4o"))
		Expect(loaded.Turns).To(Equal(state.Turns))
		Expect(loaded.UpdatedAt.IsZero()).To(BeFalse())
	})

	It("rejects a nil session", func() {
		Expect(m.SaveSession(nil, tmpDir)).To(HaveOccurred())
	})

	It("returns an error for invalid JSON", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("{nope"), 0o600)).To(Succeed())
		_, err := m.LoadSession(tmpDir)
		Expect(err).To(HaveOccurred())
	})

	It("clears the session and tolerates a missing file", func() {
		Expect(m.SaveSession(&dotdir.SessionState{}, tmpDir)).To(Succeed())
		Expect(m.ClearSession(tmpDir)).To(Succeed())
		Expect(filepath.Join(tmpDir, "session.json")).NotTo(BeAnExistingFile())
		Expect(m.ClearSession(tmpDir)).To(Succeed())
	})
})
