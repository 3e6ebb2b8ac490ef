package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/getjack-org/jack-sub003/internal/deploy"
)

var templateProjectName string

var templateCmd = &cobra.Command{
	Use:   "template <name>",
	Short: "Provision a project from a starter template",
	Long: `Create and deploy a project from a named starter template, skipping
the local bundling pipeline.

Examples:
  jack template starter
  jack template api-worker --name my-api`,
	Args:    cobra.ExactArgs(1),
	PreRunE: initializeClient,
	RunE:    runTemplate,
}

func init() {
	templateCmd.Flags().StringVar(&templateProjectName, "name", "", "name for the created project")
}

func runTemplate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := apiClient.Deploy(ctx, &deploy.Request{
		Template: &deploy.TemplateRequest{
			Name:        args[0],
			ProjectName: templateProjectName,
		},
	})
	if err != nil {
		return err
	}

	printQuietID(result.DeploymentID)
	return formatter.Print(resultRows(result.ProjectID, result.DeploymentID, result.Status, result.URL), result)
}
