package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dialsight/dialsight/internal/config"
	"github.com/dialsight/dialsight/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Inspect or create the configuration file",
	Annotations: map[string]string{"skipDB": "true"},
}

var configInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write a config file with the default settings",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"skipDB": "true"},
	Run: func(cmd *cobra.Command, args []string) {
		path := "dialsight.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			utils.Die("Config file already exists", fmt.Errorf("refusing to overwrite %s", path), nil)
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				utils.Die("Failed to create config directory", err, nil)
			}
		}
		if err := config.WriteDefault(path); err != nil {
			utils.Die("Failed to write config", err, nil)
		}
		fmt.Printf("✅ Wrote default config to %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration",
	Annotations: map[string]string{"skipDB": "true"},
	Run: func(cmd *cobra.Command, args []string) {
		out, err := yaml.Marshal(Cfg.Get())
		if err != nil {
			utils.Die("Failed to render config", err, nil)
		}
		fmt.Print(string(out))
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
