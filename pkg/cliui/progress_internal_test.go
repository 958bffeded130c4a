package cliui

import (
	"errors"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("progressModel", func() {
	It("tracks reported progress", func() {
		var m tea.Model = newProgressModel("Indexing")
		m, cmd := m.Update(progressMsg{stage: "embed", done: 3, total: 4})
		Expect(cmd).NotTo(BeNil())

		pm := m.(progressModel)
		Expect(pm.stage).To(Equal("embed"))
		Expect(ansi.Strip(pm.View().Content)).To(ContainSubstring("3/4"))
	})

	It("quits with the outcome when finished", func() {
		var m tea.Model = newProgressModel("Indexing")
		m, cmd := m.Update(finishedMsg{err: errors.New("boom")})
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(Equal(tea.Quit()))

		pm := m.(progressModel)
		Expect(pm.finished).To(BeTrue())
		Expect(ansi.Strip(pm.View().Content)).To(ContainSubstring("✗ Indexing"))
	})

	It("stops on ctrl+c", func() {
		var m tea.Model = newProgressModel("Indexing")
		m, _ = m.Update(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
		Expect(m.(progressModel).interrupted).To(BeTrue())
	})
})
