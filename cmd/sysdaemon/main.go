// Command sysdaemon is the autonomous host-monitoring and remediation
// daemon's entry point: it wires cmd/sysdaemon's cobra subcommands onto
// pkg/orchestrator.
//
// Grounded on the teacher's cmd/tarsy/main.go (--config-dir flag,
// godotenv .env loading) and the pack's jingkaihe-kodelet cmd/kodelet/
// main.go (cobra root command + viper persistent-flag binding).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codeready-toolchain/sysdaemon/pkg/version"
)

// Exit codes (spec.md §6).
const (
	exitSuccess = 0
	exitUsage   = 1
	exitRuntime = 2
)

func init() {
	viper.SetDefault("config_dir", "./deploy/config")
	viper.SetDefault("env_file", "")

	viper.SetEnvPrefix("SYSDAEMON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

var rootCmd = &cobra.Command{
	Use:     "sysdaemon",
	Short:   "Autonomous host-monitoring and remediation daemon",
	Version: version.Full(),
	Long: `sysdaemon watches a host's metrics, journal, and service health, reasons ` +
		`about what it observes across three LLM tiers, and queues or executes remediation ` +
		`actions under an operator-controlled autonomy level.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(exitUsage)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", "./deploy/config", "Path to configuration directory (sysdaemon.yaml)")
	rootCmd.PersistentFlags().String("env", "", "Path to a .env file to load (default: <config-dir>/.env)")

	_ = viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
	_ = viper.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(notifyCmd)
}

func main() {
	cobra.OnInitialize(loadEnvFile)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}

// loadEnvFile loads a .env file into the process environment before any
// subcommand runs, mirroring the teacher's godotenv.Load(envPath) call
// in cmd/tarsy/main.go.
func loadEnvFile() {
	envPath := viper.GetString("env_file")
	if envPath == "" {
		envPath = configDir() + "/.env"
	}
	if err := godotenv.Load(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", envPath, err)
	}
}

func configDir() string {
	return viper.GetString("config_dir")
}
