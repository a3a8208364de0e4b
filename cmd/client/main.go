package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harrylevesque/aviator/internal/client"
	"github.com/harrylevesque/aviator/internal/discovery"
)

// Server base URL; override with AVIATOR_SERVER or --server.
var v = viper.New()

var rootCmd = &cobra.Command{
	Use:           "aviator-client",
	Short:         "Remote control for an Aviator host",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("server", client.DefaultServer, "Aviator host base URL")
	_ = v.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	v.SetEnvPrefix("AVIATOR")
	v.AutomaticEnv()

	discoverCmd.Flags().Duration("timeout", 3*time.Second, "How long to listen for advertisements")

	rootCmd.AddCommand(listCmd, launchCmd, infoCmd, watchCmd, discoverCmd)
}

func newClient() *client.Client {
	return client.New(v.GetString("server"))
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the host's apps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		apps, err := newClient().ListApps(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tARGS")
		for _, app := range apps {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", app.ID, app.Name, app.Args)
		}
		return tw.Flush()
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch <id>",
	Short: "Launch an app on the host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().Launch(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("launch %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[+] %s (pid %d)\n", res.Message, res.PID)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show host identity and status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := newClient().Info(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Host:    %s\n", info.Hostname)
		fmt.Fprintf(out, "Status:  %s\n", info.Status)
		fmt.Fprintf(out, "Backend: %s %s\n", info.Backend, info.Version)
		fmt.Fprintf(out, "Clients: %d\n", info.Clients)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the app list every time the host reports a change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		c := newClient()
		out := cmd.OutOrStdout()
		printApps := func() {
			apps, err := c.ListApps(ctx)
			if err != nil {
				fmt.Fprintln(out, "Error:", err)
				return
			}
			names := make([]string, 0, len(apps))
			for _, app := range apps {
				names = append(names, app.Name)
			}
			fmt.Fprintf(out, "[%s] %d apps: %s\n", time.Now().Format(time.TimeOnly), len(apps), strings.Join(names, ", "))
		}

		printApps()
		err := c.Watch(ctx, func(string) { printApps() })
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find Aviator hosts on the local network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		peers, err := discovery.Browse(ctx)
		if err != nil {
			return err
		}
		if len(peers) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No hosts found.")
			return nil
		}
		for _, p := range peers {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Instance, p.URL())
		}
		return nil
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
