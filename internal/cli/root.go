package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qntx/sumx/internal/logging"
)

// Version is set at link time with -ldflags "-X github.com/qntx/sumx/internal/cli.Version=...".
var Version = "dev"

var (
	verbose bool
	logger  = zap.NewNop()

	rootCmd = &cobra.Command{
		Use:   "sumx",
		Short: "Build, package and verify the sum bindings",
		Long: `sumx exposes a 32-bit integer sum to host environments through
WebAssembly (WASI and JavaScript) and C ABI bindings.

Evaluate:  sumx eval 2 2
Build:     sumx build wasip1 js
Verify:    sumx verify dist/wasip1-wasm/sum-wasip1/sum.wasm`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger = logging.New(cmd.ErrOrStderr(), verbose)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
