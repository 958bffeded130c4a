// Package researchercmder is the root researcher command.
package researchercmder

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	preparecmder "github.com/papercomputeco/researcher/cmd/prepare"
	askcmder "github.com/papercomputeco/researcher/cmd/researcher/ask"
	authcmder "github.com/papercomputeco/researcher/cmd/researcher/auth"
	chatcmder "github.com/papercomputeco/researcher/cmd/researcher/chat"
	configcmder "github.com/papercomputeco/researcher/cmd/researcher/config"
	indexcmder "github.com/papercomputeco/researcher/cmd/researcher/index"
	initcmder "github.com/papercomputeco/researcher/cmd/researcher/init"
	searchcmder "github.com/papercomputeco/researcher/cmd/researcher/search"
	servecmder "github.com/papercomputeco/researcher/cmd/researcher/serve"
	tracescmder "github.com/papercomputeco/researcher/cmd/researcher/traces"
	versioncmder "github.com/papercomputeco/researcher/cmd/version"
)

const researcherLongDesc string = `Researcher answers questions from your own documents.

Documents are split into chunks, and each chunk is situated within its
document by an LLM before it is embedded (contextual retrieval). Questions
are answered from the most similar chunks with numbered citations.

Get started:
  researcher init                          Create .researcher/config.toml
  researcher auth openai                   Store an API key
  researcher prepare --input docs/         Chunk raw documents into a dataset
  researcher index                         Build the contextual index
  researcher "What drives permafrost thaw?"
  researcher chat                          Ask follow-up questions
  researcher serve                         Run the HTTP and MCP server

A .env file in the working directory is loaded before any command runs.`

const researcherShortDesc string = "Researcher - contextual retrieval over your documents"

func NewResearcherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "researcher [question]",
		Short:        researcherShortDesc,
		Long:         researcherLongDesc,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A missing .env is fine, a malformed one is not.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .researcher/ config directory")

	// A bare question is an ask.
	cmd.RunE = askcmder.NewRootRunE(cmd)

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(preparecmder.NewPrepareCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(tracescmder.NewTracesCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
