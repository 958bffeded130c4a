package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/researcher/cmd/researcher/config"
)

func execute(args ...string) (string, error) {
	cmd := configcmder.NewConfigCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		Expect(configcmder.NewConfigCmd().Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		var names []string
		for _, sub := range configcmder.NewConfigCmd().Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "researcher-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local .researcher dir takes precedence over ~/.researcher.
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".researcher"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("writes config.toml", func() {
			_, err := execute("set", "llm.model", "claude-3-5-haiku")
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".researcher", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`model = "claude-3-5-haiku"`))
		})

		It("rejects unknown keys", func() {
			_, err := execute("set", "proxy.upstream", "value")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("requires exactly two arguments", func() {
			_, err := execute("set", "llm.model")
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid numbers and booleans", func() {
			_, err := execute("set", "research.top_k", "many")
			Expect(err).To(HaveOccurred())
			_, err = execute("set", "tracing.enabled", "maybe")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			_, err := execute("set", "ingest.parallel_requests", "12")
			Expect(err).NotTo(HaveOccurred())

			out, err := execute("get", "ingest.parallel_requests")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("12"))
		})

		It("reports the default for keys the file leaves unset", func() {
			out, err := execute("get", "llm.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("gpt-4o"))
		})

		It("masks API keys", func() {
			out, err := execute("set", "llm.api_key", "sk-secret-1234")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).NotTo(ContainSubstring("sk-secret"))

			out, err = execute("get", "llm.api_key")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("1234"))
			Expect(out).NotTo(ContainSubstring("sk-secret"))

			out, err = execute("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).NotTo(ContainSubstring("sk-secret"))
		})

		It("rejects unknown keys", func() {
			_, err := execute("get", "invalid_key")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key", func() {
			out, err := execute("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("storage.path"))
			Expect(out).To(ContainSubstring(`"./my_data"`))
			Expect(out).To(ContainSubstring("llm.provider"))
			Expect(out).To(ContainSubstring("<not set>"))
		})

		It("rejects any arguments", func() {
			_, err := execute("list", "extra")
			Expect(err).To(HaveOccurred())
		})
	})
})
