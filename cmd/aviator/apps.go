package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/aviator/internal/registry"
	"github.com/harrylevesque/aviator/internal/utils"
)

// `apps` subcommand: edit the registry file without starting the server.
// A running server does not see these edits until it restarts.
var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage the app registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func openStore() *registry.Store {
	logger := utils.NewLogger(os.Stderr, v.GetString("log_level"), v.GetString("log_format"))
	return registry.NewStore(registryPath(), registry.WithLogger(logger))
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered apps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		apps := openStore().List()
		if len(apps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No applications configured.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPATH\tARGS")
		for _, app := range apps {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", app.ID, app.Name, app.Path, app.Args)
		}
		return tw.Flush()
	},
}

var appsAddCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Register an app",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		appArgs, _ := cmd.Flags().GetString("args")
		app := openStore().Add(args[0], args[1], appArgs)
		fmt.Fprintf(cmd.OutOrStdout(), "[+] Added %s (%s)\n", app.Name, app.ID)
		return nil
	},
}

var appsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore()
		if _, ok := store.GetByID(args[0]); !ok {
			return fmt.Errorf("no app with id %s", args[0])
		}
		store.Remove(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "[+] Removed %s\n", args[0])
		return nil
	},
}

var appsSetArgsCmd = &cobra.Command{
	Use:   "set-args <id> <args>",
	Short: "Replace an app's launch arguments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !openStore().UpdateArgs(args[0], args[1]) {
			return fmt.Errorf("no app with id %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[+] Updated arguments for %s\n", args[0])
		return nil
	},
}

func init() {
	appsAddCmd.Flags().String("args", "", "Launch arguments, quoted as on a shell command line")

	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsAddCmd)
	appsCmd.AddCommand(appsRemoveCmd)
	appsCmd.AddCommand(appsSetArgsCmd)
}
