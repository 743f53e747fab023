package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/authoring"
	"github.com/c360studio/llmanspec/document"
)

type scenarioFlags struct {
	reqID string
	id    string
	given string
	when  string
	then  string
}

func (f *scenarioFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.reqID, "req-id", "", "Requirement the scenario belongs to")
	cmd.Flags().StringVar(&f.id, "id", "", "Scenario id, unique within the requirement")
	cmd.Flags().StringVar(&f.given, "given", "", "Precondition (optional)")
	cmd.Flags().StringVar(&f.when, "when", "", "Trigger")
	cmd.Flags().StringVar(&f.then, "then", "", "Expected result")
	_ = cmd.MarkFlagRequired("req-id")
	_ = cmd.MarkFlagRequired("id")
}

func newSpecCmd(app func() *App) *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Author main specs",
	}
	cmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Align table columns (default from output.pretty)")

	var (
		purpose string
		force   bool
	)
	initCmd := &cobra.Command{
		Use:   "init <spec-id>",
		Short: "Create a spec skeleton with default frontmatter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			path, err := a.Editor(boolFlag(cmd, "pretty", pretty)).SpecSkeleton(args[0], purpose, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", a.manager.Rel(path))
			return nil
		},
	}
	initCmd.Flags().StringVar(&purpose, "purpose", "", "Purpose of the capability")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing spec")

	var req struct{ id, title, statement string }
	addReqCmd := &cobra.Command{
		Use:   "add-requirement <spec-id>",
		Short: "Append a requirement with a baseline scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			path, err := a.Editor(boolFlag(cmd, "pretty", pretty)).UpdateSpec(args[0], func(spec *document.Spec) error {
				return authoring.AddRequirement(spec, req.id, req.title, req.statement)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added requirement %s to %s\n", req.id, a.manager.Rel(path))
			return nil
		},
	}
	addReqCmd.Flags().StringVar(&req.id, "req-id", "", "Requirement id")
	addReqCmd.Flags().StringVar(&req.title, "title", "", "Requirement title")
	addReqCmd.Flags().StringVar(&req.statement, "statement", "", "Normative statement containing MUST or SHALL")
	_ = addReqCmd.MarkFlagRequired("req-id")

	var sc scenarioFlags
	addScenarioCmd := &cobra.Command{
		Use:   "add-scenario <spec-id>",
		Short: "Append a scenario to a requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			path, err := a.Editor(boolFlag(cmd, "pretty", pretty)).UpdateSpec(args[0], func(spec *document.Spec) error {
				return authoring.AddScenario(spec, sc.reqID, sc.id, sc.given, sc.when, sc.then)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added scenario %s/%s to %s\n", sc.reqID, sc.id, a.manager.Rel(path))
			return nil
		},
	}
	sc.register(addScenarioCmd)

	cmd.AddCommand(initCmd, addReqCmd, addScenarioCmd)
	return cmd
}

func newDeltaCmd(app func() *App) *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "delta",
		Short: "Author change delta documents",
	}
	cmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Align table columns (default from output.pretty)")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <change-id> <spec-id>",
		Short: "Create an empty delta for a spec in a change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			path, err := a.Editor(boolFlag(cmd, "pretty", pretty)).DeltaSkeleton(args[0], args[1], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", a.manager.Rel(path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing delta")

	var op authoring.OpInput
	addOpCmd := &cobra.Command{
		Use:   "add-op <change-id> <spec-id>",
		Short: "Append an operation to a delta",
		Long: `Append an operation to a delta. --op is one of add_requirement,
modify_requirement, remove_requirement or rename_requirement.

add and modify need --title and a --statement containing MUST or SHALL.
rename needs --from and --to. remove takes an optional --name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			path, err := a.Editor(boolFlag(cmd, "pretty", pretty)).UpdateDelta(args[0], args[1], func(delta *document.Delta) error {
				return authoring.AddOp(delta, op)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s to %s\n", op.Op, op.ReqID, a.manager.Rel(path))
			return nil
		},
	}
	addOpCmd.Flags().StringVar(&op.Op, "op", "", "Operation kind")
	addOpCmd.Flags().StringVar(&op.ReqID, "req-id", "", "Requirement id")
	addOpCmd.Flags().StringVar(&op.Title, "title", "", "Requirement title (add, modify)")
	addOpCmd.Flags().StringVar(&op.Statement, "statement", "", "Normative statement (add, modify)")
	addOpCmd.Flags().StringVar(&op.From, "from", "", "Current title (rename)")
	addOpCmd.Flags().StringVar(&op.To, "to", "", "New title (rename)")
	addOpCmd.Flags().StringVar(&op.Name, "name", "", "Requirement name (remove)")
	_ = addOpCmd.MarkFlagRequired("op")
	_ = addOpCmd.MarkFlagRequired("req-id")

	var sc scenarioFlags
	addScenarioCmd := &cobra.Command{
		Use:   "add-scenario <change-id> <spec-id>",
		Short: "Append a scenario to an add or modify operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			path, err := a.Editor(boolFlag(cmd, "pretty", pretty)).UpdateDelta(args[0], args[1], func(delta *document.Delta) error {
				return authoring.AddOpScenario(delta, sc.reqID, sc.id, sc.given, sc.when, sc.then)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added scenario %s/%s to %s\n", sc.reqID, sc.id, a.manager.Rel(path))
			return nil
		},
	}
	sc.register(addScenarioCmd)

	cmd.AddCommand(initCmd, addOpCmd, addScenarioCmd)
	return cmd
}
