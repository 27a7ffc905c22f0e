package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"effectcraft/internal/compendium"
	"effectcraft/internal/validate"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run consistency checks against the stored world",
		RunE:  runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	report, err := validate.Run(ctx, a.rules, a.cfg.Namespace, a.world)
	if err != nil {
		return err
	}

	packErrors, err := validatePacks(a.cfg.Packs.Root)
	if err != nil {
		return err
	}

	var errorIssues []validate.Issue
	var warnIssues []validate.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case validate.SeverityError:
			errorIssues = append(errorIssues, issue)
		case validate.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) == 0 && len(warnIssues) == 0 && len(packErrors) == 0 {
		fmt.Fprintln(os.Stdout, "No issues found.")
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(errorIssues))
		printIssues(os.Stdout, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnIssues))
		printIssues(os.Stdout, warnIssues)
	}
	if len(packErrors) > 0 {
		fmt.Fprintf(os.Stdout, "Pack errors (%d):\n", len(packErrors))
		for _, packErr := range packErrors {
			fmt.Fprintf(os.Stdout, "  - %v\n", packErr)
		}
	}

	if len(errorIssues) > 0 || len(packErrors) > 0 {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out *os.File, issues []validate.Issue) {
	for _, issue := range issues {
		location := issue.Entity
		if issue.Actor != "" && issue.Actor != issue.Entity {
			location = fmt.Sprintf("%s on actor %s", issue.Entity, issue.Actor)
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}

// validatePacks loads every configured compendium pack so schema failures
// surface in the report instead of at reconcile time.
func validatePacks(root string) ([]error, error) {
	if root == "" {
		return nil, nil
	}
	lib, err := compendium.Open(root)
	if err != nil {
		return nil, err
	}
	packs, err := lib.Packs()
	if err != nil {
		return nil, err
	}
	var failures []error
	for _, packID := range packs {
		if _, err := lib.LoadPack(packID); err != nil {
			failures = append(failures, err)
		}
	}
	return failures, nil
}
