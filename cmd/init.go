package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initForce bool

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default jarvis.yaml configuration file",
		Long: `Create a jarvis.yaml in the current working directory populated with the
current defaults (sandbox, reload rules, generator, validation and logging) so
it can be edited manually. An existing file is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			targetPath := filepath.Join(configFolderPath, configFileName)

			write := viper.SafeWriteConfigAs
			if initForce {
				write = viper.WriteConfigAs
			}

			if err := write(targetPath); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			cmd.Printf("Wrote %s.\n", targetPath)
			cmd.Printf("Pipeline state lives under %s/, %s/, %s/ and %s/; these paths are never valid change targets.\n",
				".staging", backupsDirName, logsDirName, stateDirName)

			provider := generatorProvider()
			if generatorAPIKey(provider) == "" {
				cmd.Printf("No API key for the %s generator yet: set %s_GENERATOR_API_KEY before running request or agent.\n",
					provider, envPrefix)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")

	return cmd
}

func init() {
	rootCmd.AddCommand(initCmd)
}
