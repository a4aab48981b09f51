package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"zzuli-evaluation/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	useQR      *bool
	username   *string
	dumpDir    *string

	config Config
)

var rootCmd = &cobra.Command{
	Use:           "zzuli-eval",
	Short:         "zzuli-eval fills in the pending teaching evaluations of the ZZULI academic affairs system.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*verbose)

		var err error
		config, err = loadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if *username != "" {
			config.Username = *username
		}
		if *dumpDir != "" {
			config.DumpHttp = *dumpDir
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	configPath = flags.String("config", "config.json5", "The config file, <name>.local.json5 next to it overrides it.")
	verbose = flags.BoolP("verbose", "v", false, "Log debug messages.")
	useQR = flags.Bool("qr", false, "Log in by scanning a QR code with the campus app instead of a password.")
	username = flags.StringP("username", "u", "", "The student number to log in with.")
	dumpDir = flags.String("dump", "", "Write every http exchange into this directory.")
}

// ExecuteContext runs the command line and returns the exit code.
func ExecuteContext(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "interrupted")
		return 130
	}
	fmt.Fprintln(os.Stderr, newUI().err("error:"), err)
	return 1
}
