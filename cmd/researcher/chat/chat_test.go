package chatcmder_test

import (
	"bytes"
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	chatcmder "github.com/papercomputeco/researcher/cmd/researcher/chat"
	"github.com/papercomputeco/researcher/pkg/dotdir"
	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/logger"
	"github.com/papercomputeco/researcher/pkg/rag"
	"github.com/papercomputeco/researcher/pkg/research"
	"github.com/papercomputeco/researcher/pkg/storage"
	testutils "github.com/papercomputeco/researcher/pkg/utils/test"
)

type staticRetriever struct{}

func (staticRetriever) Search(_ context.Context, _ string, _ int) ([]rag.Result, error) {
	return []rag.Result{{
		Chunk: storage.Chunk{
			ID:              "doc_1_0",
			DocID:           "doc_1",
			ChunkID:         "doc_1_chunk_0",
			OriginalContent: "Permafrost is frozen ground.",
		},
		Similarity: 0.9,
	}}, nil
}

type memStore struct {
	saved   []research.Turn
	loaded  []research.Turn
	cleared bool
}

func (m *memStore) Load() ([]research.Turn, error) { return m.loaded, nil }

func (m *memStore) Save(turns []research.Turn) error {
	m.saved = turns
	return nil
}

func (m *memStore) Clear() error {
	m.cleared = true
	m.saved = nil
	return nil
}

var _ = Describe("REPL", func() {
	var (
		prov  *testutils.MockProvider
		store *memStore
		out   *bytes.Buffer
		errs  *bytes.Buffer
	)

	newREPL := func(input string) *chatcmder.REPL {
		r, err := research.New(research.Config{
			Retriever: staticRetriever{},
			Provider:  prov,
			Logger:    logger.Nop(),
			Model:     "gpt-4o",
		})
		Expect(err).NotTo(HaveOccurred())
		return &chatcmder.REPL{
			Session: r.NewSession(3),
			Store:   store,
			In:      strings.NewReader(input),
			Out:     out,
			ErrOut:  errs,
			Model:   "gpt-4o",
			Logger:  logger.Nop(),
		}
	}

	BeforeEach(func() {
		prov = testutils.NewMockProvider()
		store = &memStore{}
		out = &bytes.Buffer{}
		errs = &bytes.Buffer{}
	})

	It("answers each line and saves the conversation", func() {
		repl := newREPL("What is permafrost?\n\nAnd why does it thaw?\n")
		Expect(repl.Run(context.Background())).To(Succeed())

		Expect(prov.RequestCount()).To(Equal(2))
		Expect(store.saved).To(HaveLen(2))
		Expect(store.saved[0].Question).To(Equal("What is permafrost?"))
		Expect(store.saved[1].Question).To(Equal("And why does it thaw?"))
		Expect(out.String()).To(ContainSubstring("New conversation"))
	})

	It("sends earlier turns as history", func() {
		repl := newREPL("first\nsecond\n")
		Expect(repl.Run(context.Background())).To(Succeed())

		last := prov.Requests[1]
		Expect(last.Messages).To(HaveLen(3))
		Expect(last.Messages[0].GetText()).To(Equal("first"))
		Expect(last.Messages[1].Role).To(Equal(llm.RoleAssistant))
	})

	It("stops at /exit", func() {
		repl := newREPL("/exit\nnever asked\n")
		Expect(repl.Run(context.Background())).To(Succeed())
		Expect(prov.RequestCount()).To(BeZero())
	})

	It("lists the sources of the last answer", func() {
		repl := newREPL("/sources\nWhat is permafrost?\n/sources\n")
		Expect(repl.Run(context.Background())).To(Succeed())

		Expect(out.String()).To(ContainSubstring("No answer yet."))
		Expect(out.String()).To(ContainSubstring("doc_1/doc_1_chunk_0"))
	})

	It("clears the session and the saved copy on /reset", func() {
		repl := newREPL("one\n/reset\n")
		Expect(repl.Run(context.Background())).To(Succeed())

		Expect(store.cleared).To(BeTrue())
		Expect(repl.Session.Len()).To(BeZero())
	})

	It("reports failed turns and keeps going", func() {
		calls := 0
		prov.Respond = func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("model overloaded")
			}
			return &llm.ChatResponse{Model: req.Model, Message: llm.NewTextMessage(llm.RoleAssistant, "ok")}, nil
		}

		repl := newREPL("one\ntwo\n")
		Expect(repl.Run(context.Background())).To(Succeed())

		Expect(errs.String()).To(ContainSubstring("model overloaded"))
		Expect(store.saved).To(HaveLen(1))
		Expect(store.saved[0].Question).To(Equal("two"))
	})

	It("resumes a saved conversation", func() {
		store.loaded = []research.Turn{{Question: "earlier", Answer: "before"}}
		repl := newREPL("later\n")
		repl.Resume = true
		Expect(repl.Run(context.Background())).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Resuming conversation"))
		Expect(prov.Requests[0].Messages[0].GetText()).To(Equal("earlier"))
		Expect(store.saved).To(HaveLen(2))
	})
})

var _ = Describe("session state conversion", func() {
	It("round trips turns through alternating messages", func() {
		turns := []research.Turn{
			{Question: "q1", Answer: "a1"},
			{Question: "q2", Answer: "a2"},
		}
		state := chatcmder.StateFromTurns("gpt-4o", turns)
		Expect(state.Model).To(Equal("gpt-4o"))
		Expect(state.Turns).To(HaveLen(4))
		Expect(chatcmder.TurnsFromState(state)).To(Equal(turns))
	})

	It("drops a trailing unanswered question", func() {
		state := &dotdir.SessionState{Turns: []dotdir.SessionTurn{
			{Role: llm.RoleUser, Content: "q1"},
			{Role: llm.RoleAssistant, Content: "a1"},
			{Role: llm.RoleUser, Content: "q2"},
		}}
		Expect(chatcmder.TurnsFromState(state)).To(Equal([]research.Turn{{Question: "q1", Answer: "a1"}}))
	})
})

var _ = Describe("NewChatCmd", func() {
	It("registers the query flags and --resume", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
		Expect(cmd.Flags().Lookup("resume")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("model")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("top-k")).NotTo(BeNil())
	})
})
