package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/snonux/bn2en/internal"
)

// Runner executes the commands
type Runner interface {
	Interactive(cmd *cobra.Command) error
	Translate(cmd *cobra.Command, text string) error
	Download(cmd *cobra.Command) error
	Batch(cmd *cobra.Command) error
	Models(cmd *cobra.Command, repoID string) error
	History(cmd *cobra.Command) error
	Export(cmd *cobra.Command) error
}

// CreateRootCommand creates and configures the root cobra command and its
// subcommands
func CreateRootCommand(flags *Flags, runner Runner) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bn2en",
		Short: "Bangla to English translator",
		Long: `bn2en translates Bangla text to English with a pretrained neural
machine translation model downloaded from the Hugging Face hub.

The model bundle (SentencePiece tokenizers and a CTranslate2 model) is
fetched on first use and reused afterwards.

Examples:
  bn2en                              # Interactive translation loop
  bn2en translate "আমি ভাত খাই"       # Translate a single text
  bn2en batch -f texts.txt           # Translate one text per line
  bn2en download --base-dir ./models # Fetch the model bundle only
  bn2en export -o words.apkg         # Turn the history into flashcards`,
		Args:    cobra.NoArgs,
		Version: internal.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Interactive(cmd)
		},
	}

	translateCmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate a single text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Translate(cmd, args[0])
		},
	}

	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download the model bundle and check that it loads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Download(cmd)
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Translate texts from a file (one per line)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.BatchFile == "" {
				return fmt.Errorf("--file is required")
			}
			return runner.Batch(cmd)
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models [repo]",
		Short: "List the files of a model repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoID := flags.RepoID
			if len(args) > 0 {
				repoID = args[0]
			}
			return runner.Models(cmd, repoID)
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent translations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.History(cmd)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the history as Anki flashcards (.apkg, or .csv by extension)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Export(cmd)
		},
	}

	setupFlags(rootCmd, flags)
	batchCmd.Flags().StringVarP(&flags.BatchFile, "file", "f", "", "Input file with one Bangla text per line")
	batchCmd.Flags().StringVarP(&flags.OutputDir, "output", "o", DefaultOutputDir(), "Output directory")
	batchCmd.Flags().IntVar(&flags.Retries, "retries", flags.Retries, "Retries for transient translation failures")
	batchCmd.Flags().BoolVar(&flags.Archive, "archive", false, "Archive the previous output directory first")
	historyCmd.Flags().IntVarP(&flags.Limit, "limit", "n", flags.Limit, "Number of entries to show")

	exportCmd.Flags().StringVarP(&flags.ExportPath, "output", "o", flags.ExportPath, "Output file, .apkg or .csv")
	exportCmd.Flags().StringVar(&flags.DeckName, "deck", flags.DeckName, "Anki deck name")

	rootCmd.AddCommand(translateCmd, downloadCmd, batchCmd, modelsCmd, historyCmd, exportCmd)

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	pf := cmd.PersistentFlags()

	// Global flags
	pf.StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.bn2en.yaml)")
	pf.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: trace, debug, info, warn, error")
	pf.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format: console or json")
	pf.StringVar(&flags.HistoryPath, "history", "", "History database (default is ~/.local/state/bn2en/history.db)")
	pf.BoolVar(&flags.NoHistory, "no-history", false, "Do not record translations")
	pf.StringVar(&flags.Fallback, "fallback", "", "Fallback provider when the local model fails: openai or gemini")

	// Model flags
	pf.StringVar(&flags.RepoID, "repo", flags.RepoID, "Model repository on the hub (env HUGGINGFACE_REPO_ID)")
	pf.StringVar(&flags.BaseDir, "base-dir", "", "Directory the model directory is created in (env MODEL_BASE_DIR)")
	pf.StringVar(&flags.Revision, "revision", flags.Revision, "Repository revision")
	pf.StringVar(&flags.Device, "device", flags.Device, "Compute device: auto, cuda or cpu")

	// Engine flags
	pf.StringVar(&flags.Backend, "backend", flags.Backend, "Inference backend (debug only: stub echoes its input)")
	pf.MarkHidden("backend")
	pf.StringVar(&flags.Python, "python", flags.Python, "Python interpreter with the ctranslate2 package")
	pf.StringVar(&flags.ComputeType, "compute-type", flags.ComputeType, "CTranslate2 compute type (default, int8, float16, ...)")
	pf.IntVar(&flags.BeamSize, "beam-size", flags.BeamSize, "Beam size")

	// Hub flags
	pf.StringVar(&flags.HubEndpoint, "hub-endpoint", flags.HubEndpoint, "Model hub endpoint (env HF_ENDPOINT)")

	bindFlagsToViper(cmd)
}

// viperKeys maps persistent flags to configuration keys
var viperKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"history":      "history.path",
	"no-history":   "history.disabled",
	"fallback":     "fallback.provider",
	"repo":         "model.repo_id",
	"base-dir":     "model.base_dir",
	"revision":     "model.revision",
	"device":       "model.device",
	"backend":      "engine.backend",
	"python":       "engine.python",
	"compute-type": "engine.compute_type",
	"beam-size":    "engine.beam_size",
	"hub-endpoint": "hub.endpoint",
}

func bindFlagsToViper(cmd *cobra.Command) {
	for flag, key := range viperKeys {
		if f := cmd.PersistentFlags().Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				fmt.Fprintf(os.Stderr, "Error binding flag %s: %v\n", flag, err)
			}
		}
	}
}
