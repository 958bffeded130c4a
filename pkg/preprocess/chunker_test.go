package preprocess_test

import (
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/preprocess"
)

var _ = Describe("Chunker", func() {
	It("rejects an overlap as large as the chunk size", func() {
		_, err := preprocess.NewChunker(100, 100)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a non-positive size", func() {
		_, err := preprocess.NewChunker(0, 0)
		Expect(err).To(HaveOccurred())
	})

	It("returns nothing for blank text", func() {
		c, err := preprocess.NewChunker(100, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Split("  \n\n \t")).To(BeEmpty())
	})

	It("packs short paragraphs into one chunk", func() {
		c, err := preprocess.NewChunker(100, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Split("First para.\n\nSecond para.")).To(Equal([]string{"First para.\n\nSecond para."}))
	})

	It("starts a new chunk when the next paragraph does not fit", func() {
		c, err := preprocess.NewChunker(20, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Split("aaaa aaaa aaaa\n\nbbbb bbbb bbbb")).To(Equal([]string{
			"aaaa aaaa aaaa",
			"bbbb bbbb bbbb",
		}))
	})

	It("carries an overlap from the end of the previous chunk", func() {
		c, err := preprocess.NewChunker(30, 10)
		Expect(err).NotTo(HaveOccurred())
		chunks := c.Split("alpha beta gamma delta\n\nepsilon zeta")
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[0]).To(Equal("alpha beta gamma delta"))
		Expect(chunks[1]).To(Equal("delta epsilon zeta"))
	})

	It("splits an oversize paragraph on sentences", func() {
		c, err := preprocess.NewChunker(25, 0)
		Expect(err).NotTo(HaveOccurred())
		chunks := c.Split("One short sentence. Another short one! A third?")
		Expect(chunks).To(Equal([]string{
			"One short sentence.",
			"Another short one!",
			"A third?",
		}))
	})

	It("hard-splits text with no sentence boundary", func() {
		c, err := preprocess.NewChunker(10, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Split(strings.Repeat("x", 25))).To(Equal([]string{
			strings.Repeat("x", 10),
			strings.Repeat("x", 10),
			strings.Repeat("x", 5),
		}))
	})

	It("never exceeds the chunk size in runes", func() {
		c, err := preprocess.NewChunker(50, 20)
		Expect(err).NotTo(HaveOccurred())

		text := strings.Repeat("Ünïcödé wörds keep cömïng. ", 30) + "\n\n" +
			strings.Repeat("paragraph two has more words ", 10)
		chunks := c.Split(text)
		Expect(len(chunks)).To(BeNumerically(">", 1))
		for _, chunk := range chunks {
			Expect(utf8.RuneCountInString(chunk)).To(BeNumerically("<=", 50))
			Expect(chunk).NotTo(BeEmpty())
		}
	})
})
