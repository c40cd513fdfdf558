package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write engine settings in the database",
	}
	configCmd.AddCommand(newConfigSetCommand(ctx))
	configCmd.AddCommand(newConfigGetCommand(ctx))
	return configCmd
}

func newConfigSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting (takes effect on the next start)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensure(); err != nil {
				return err
			}
			key := strings.TrimSpace(args[0])
			if err := ctx.store.SetConfig(key, args[1]); err != nil {
				return fmt.Errorf("save %s: %w", key, err)
			}
			// 校验一遍, 非法值只告警
			if _, err := ctx.settings(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, args[1])
			return nil
		},
	}
}

func newConfigGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one stored setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensure(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				v, ok, err := ctx.store.GetConfig(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s is not set", args[0])
				}
				fmt.Fprintln(out, v)
				return nil
			}

			kv, err := ctx.store.ConfigMap()
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(kv))
			for k := range kv {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s = %s\n", k, kv[k])
			}
			return nil
		},
	}
}
