package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"codeberg.org/snonux/bn2en/internal/session"
)

// InitConfig loads .env and initializes viper configuration
func InitConfig(cfgFile string) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".bn2en" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bn2en")
	}

	// Environment variables, e.g. BN2EN_MODEL_REPO_ID
	viper.SetEnvPrefix("BN2EN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// ApplyConfig copies values set in the config file, the environment or on
// the command line into flags
func ApplyConfig(flags *Flags) {
	setString := func(key string, dst *string) {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}

	setString("log.level", &flags.LogLevel)
	setString("log.format", &flags.LogFormat)
	setString("history.path", &flags.HistoryPath)
	setString("fallback.provider", &flags.Fallback)
	setString("model.revision", &flags.Revision)
	setString("model.device", &flags.Device)
	setString("engine.backend", &flags.Backend)
	setString("engine.python", &flags.Python)
	setString("engine.compute_type", &flags.ComputeType)
	if viper.IsSet("history.disabled") {
		flags.NoHistory = viper.GetBool("history.disabled")
	}
	if viper.IsSet("engine.beam_size") {
		flags.BeamSize = viper.GetInt("engine.beam_size")
	}

	flags.RepoID = GetRepoID()
	flags.BaseDir = GetBaseDir()
	flags.HubEndpoint = GetHubEndpoint(flags.HubEndpoint)
}

// GetRepoID returns the model repository: flag, config or BN2EN_MODEL_REPO_ID
// first, then HUGGINGFACE_REPO_ID, then the default
func GetRepoID() string {
	if viper.IsSet("model.repo_id") {
		return viper.GetString("model.repo_id")
	}
	if repoID := os.Getenv("HUGGINGFACE_REPO_ID"); repoID != "" {
		return repoID
	}
	return session.DefaultRepoID
}

// GetBaseDir returns the model base directory, empty when unset
func GetBaseDir() string {
	if viper.IsSet("model.base_dir") {
		return viper.GetString("model.base_dir")
	}
	return os.Getenv("MODEL_BASE_DIR")
}

// GetHubEndpoint returns the hub endpoint, honouring HF_ENDPOINT
func GetHubEndpoint(fallback string) string {
	if viper.IsSet("hub.endpoint") {
		return viper.GetString("hub.endpoint")
	}
	if endpoint := os.Getenv("HF_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return fallback
}

// GetHubToken retrieves the model hub access token from environment or config
func GetHubToken() string {
	for _, env := range []string{"HUGGINGFACE_TOKEN", "HF_TOKEN"} {
		if token := os.Getenv(env); token != "" {
			return token
		}
	}

	return viper.GetString("hub.token")
}

// GetOpenAIKey retrieves the OpenAI API key from environment or config
func GetOpenAIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}

	return viper.GetString("fallback.openai_key")
}

// GetGeminiKey retrieves the Gemini API key from environment or config
func GetGeminiKey() string {
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}

	return viper.GetString("fallback.gemini_key")
}
