package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getjack-org/jack-sub003/internal/deploy"
)

var (
	deployProjectID string
	deployName      string
	deployMessage   string
	deployFlags     []string
)

// skipDirs are directory names never shipped to the deploy service.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	".output":      true,
}

// sourceExtensions are the file types collected from a project directory.
var sourceExtensions = map[string]bool{
	".ts":   true,
	".tsx":  true,
	".js":   true,
	".jsx":  true,
	".mjs":  true,
	".json": true,
}

var deployCmd = &cobra.Command{
	Use:   "deploy [directory]",
	Short: "Bundle and deploy a project directory",
	Long: `Collect the source files of a project directory, bundle them through
the deploy service, and ship the result.

Examples:
  jack deploy .
  jack deploy ./my-worker --name my-worker
  jack deploy . --project proj_123 --message "fix routing"`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: initializeClient,
	RunE:    runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployProjectID, "project", "", "deploy to an existing project ID")
	deployCmd.Flags().StringVar(&deployName, "name", "", "name for a newly created project")
	deployCmd.Flags().StringVarP(&deployMessage, "message", "m", "", "deployment message")
	deployCmd.Flags().StringSliceVar(&deployFlags, "compat-flag", nil, "runtime compatibility flag (repeatable)")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	files, err := collectSourceFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files found in %s", dir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := apiClient.Deploy(ctx, &deploy.Request{
		Files:              files,
		ProjectID:          deployProjectID,
		ProjectName:        deployName,
		Message:            deployMessage,
		CompatibilityFlags: deployFlags,
	})
	if err != nil {
		return err
	}

	printResultWarnings(result.Warnings)
	printQuietID(result.DeploymentID)
	return formatter.Print(resultRows(result.ProjectID, result.DeploymentID, result.Status, result.URL), result)
}

// collectSourceFiles walks dir and returns shippable files keyed by
// their path relative to dir.
func collectSourceFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !sourceExtensions[ext] {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path) //nolint:gosec // CLI tool reads user-provided project files
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}

		files[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	return files, nil
}
