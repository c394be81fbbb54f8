package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# Where chat comes from: youtube, websocket or console
chat:
  source: youtube
  # how often to poll YouTube when the server does not ask for longer
  poll_interval: 1s
  # ignore messages sent before prisma connected
  skip_backlog: true

# Language model that answers when no rule matches: gemini or openai
# Keys come from GOOGLE_API_KEY or OPENAI_API_KEY (and OPENAI_BASE_URL).
generation:
  backend: gemini
  # empty picks gemini-flash-lite-latest or gpt-4o-mini
  model: ""
  timeout: 60s

persona:
  # nombre, personalidad, tono_de_voz and mision
  personality: context/personality.yml
  # canned answers matched before the language model
  rules: context/rules.yml
  # spoken when the language model fails
  fallback: "Ay, mi cerebro de IA tuvo un cortocircuito. ¿Puedes repetirlo?"

# Voice: piper, gtts, command or print
speech:
  engine: print
  volume: 1.0
  piper:
    binary: piper
    model: ""
    # config: "/path/to/model.onnx.json"
    speed: 1.0
    timeout: 30s
  gtts:
    language: es
    slow: false
    requests_per_minute: 50
    timeout: 30s
  command:
    program: espeak-ng
    args: ["-v", "es", "--stdin"]
    timeout: 30s
  cache:
    enabled: true
    # dir defaults to the user cache directory
    memory_mb: 32
    disk_mb: 256
    compression_level: 3

# Publish status events for stream overlays
events:
  # redis_url: "redis://localhost:6379/0"
  redis_channel: "prisma:events"
`

var showConfig bool

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the prisma config file",
	Long:    paragraph(fmt.Sprintf("\n%s the prisma config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("prisma config\nprisma config --show\nprisma config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if showConfig {
			if _, err := loadConfig(); err != nil {
				return err
			}
			out, err := yaml.Marshal(viper.AllSettings())
			if err != nil {
				return fmt.Errorf("unable to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}

		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Prisma", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&showConfig, "show", false, "print the effective configuration instead of editing it")
}

// ensureConfigFile writes the documented default to configFile, or to the
// file viper loaded, unless it already exists.
func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		return errors.New("no configuration file to write")
	}
	_, err := writeDefaultConfig(configFile)
	return err
}

// writeDefaultConfig creates path with defaultConfig. It reports whether the
// file was created; an existing file is left alone.
func writeDefaultConfig(path string) (bool, error) {
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return false, fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("unable to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("unable create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o600); err != nil {
		return false, fmt.Errorf("unable to write config file: %w", err)
	}
	return true, nil
}
