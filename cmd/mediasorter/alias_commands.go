package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAliasCommand(ctx *commandContext) *cobra.Command {
	aliasCmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage title overrides applied before catalog lookups",
	}
	aliasCmd.AddCommand(newAliasAddCommand(ctx))
	aliasCmd.AddCommand(newAliasListCommand(ctx))
	aliasCmd.AddCommand(newAliasRemoveCommand(ctx))
	return aliasCmd
}

func newAliasAddCommand(ctx *commandContext) *cobra.Command {
	var season int

	cmd := &cobra.Command{
		Use:   "add <parsed title> <catalog title>",
		Short: "Map a parsed title to the title to search for",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensure(); err != nil {
				return err
			}
			if err := ctx.store.PutAlias(args[0], args[1], season); err != nil {
				return fmt.Errorf("save alias: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().IntVar(&season, "season", 0, "Force this season number (0 keeps the parsed season)")
	return cmd
}

func newAliasListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List title overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensure(); err != nil {
				return err
			}
			list, err := ctx.store.ListAliases()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No aliases")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ALIAS\tTARGET\tSEASON")
			for _, a := range list {
				season := "-"
				if a.TargetSeason > 0 {
					season = strconv.Itoa(a.TargetSeason)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Alias, a.TargetTitle, season)
			}
			return tw.Flush()
		},
	}
}

func newAliasRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <parsed title>",
		Short: "Delete a title override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensure(); err != nil {
				return err
			}
			return ctx.store.DeleteAlias(args[0])
		},
	}
}
