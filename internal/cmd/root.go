package cmd

import (
	"strings"

	configcmd "github.com/Iron-Ham/logscope/internal/cmd/config"
	"github.com/Iron-Ham/logscope/internal/config"
	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "logscope",
	Short: "Inspect and manage captured application logs",
	Long: `Logscope stores application logs and HTTP exchanges in a bounded store
(memory, rotating files, SQLite or PostgreSQL) and lets you query, follow,
export and browse them from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfgFile, _ := cmd.Flags().GetString("config")
		initConfig(cfgFile)
	},
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln(errorText(err))
	}
	return err
}

// errorText is what a failed command prints. Errors meant for the user are
// printed as they are; store failures get a pointer to the settings and, when
// transient, a note that a rerun may succeed.
func errorText(err error) string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())
	if errors.IsUserFacing(err) {
		return b.String()
	}
	if errors.IsStorageError(err) {
		b.WriteString("\nCheck the storage settings with 'logscope config show'.")
	}
	if errors.IsRetryable(err) {
		b.WriteString("\nThe store was busy; the command may succeed if run again.")
	}
	return b.String()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/logscope/config.yaml)")

	configcmd.Register(rootCmd)
}

func initConfig(cfgFile string) {
	// Set defaults first so they're available even without a config file.
	// SetDefaults also wires the LOGSCOPE_ environment overrides.
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
