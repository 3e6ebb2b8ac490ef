// Package cmd provides the Cobra commands for the Jack CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/getjack-org/jack-sub003/cli/client"
	"github.com/getjack-org/jack-sub003/cli/output"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	serverURL string
	outputFmt string
	quiet     bool
	debug     bool

	// Shared across commands
	apiClient *client.Client
	formatter *output.Formatter
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jack",
	Short: "Jack CLI - Deploy JavaScript and TypeScript projects",
	Long: `Jack CLI bundles and deploys JavaScript/TypeScript projects through
the Jack deploy service.

Get started:
  jack deploy .          Deploy the current directory
  jack template starter  Provision a project from a starter template
  jack --help            Show available commands`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmd.SilenceErrors = quiet
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "",
		"deploy service URL (default http://localhost:8080, env JACK_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")

	// Bind environment variables
	viper.SetEnvPrefix("JACK")
	_ = viper.BindEnv("server") // JACK_SERVER
	_ = viper.BindEnv("debug")  // JACK_DEBUG

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(templateCmd)
}

// initializeClient sets up the API client for commands that need it
func initializeClient(cmd *cobra.Command, args []string) error {
	viper.AutomaticEnv()

	server := serverURL
	if server == "" {
		server = viper.GetString("server")
	}
	if server == "" {
		server = "http://localhost:8080"
	}

	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return err
	}

	apiClient = client.NewClient(server, client.WithDebug(debug || viper.GetBool("debug")))
	formatter = output.NewFormatter(format, quiet)
	return nil
}

func printResultWarnings(warnings []string) {
	for _, w := range warnings {
		formatter.Warn(w)
	}
}

func resultRows(projectID, deploymentID, status, url string) [][]string {
	rows := [][]string{
		{"Project", projectID},
		{"Deployment", deploymentID},
		{"Status", status},
	}
	if url != "" {
		rows = append(rows, []string{"URL", url})
	}
	return rows
}

func printQuietID(id string) {
	if quiet {
		fmt.Println(id)
	}
}
