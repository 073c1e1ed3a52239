// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kiln-cli/internal/issue"
)

// issueCmd shows the self-help page for a known failure class. Error messages
// reference these pages by number.
var issueCmd = &cobra.Command{
	Use:   "issue <id>",
	Short: "Show the help page for a known issue",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssue,
}

func runIssue(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("issue id must be a number, got %q", args[0])
	}

	page := issue.Lookup(issue.Id(id))
	if page == nil {
		return fmt.Errorf("no issue page registered for id %d", id)
	}

	rendered, err := page.Render("dark")
	if err != nil {
		return fmt.Errorf("failed to render issue page: %w", err)
	}

	fmt.Print(rendered)
	return nil
}
