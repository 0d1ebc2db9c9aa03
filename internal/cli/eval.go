package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qntx/sumx/internal/arith"
	"github.com/qntx/sumx/internal/host"
)

type evalFlags struct {
	policy string
	wasm   string
}

var (
	eFlags  evalFlags
	evalCmd = &cobra.Command{
		Use:   "eval <a> <b>",
		Short: "Add two 32-bit integers",
		Long: `Eval adds two signed 32-bit integers and prints the result.

The default policy wraps on overflow, like every binding does. Use
--policy checked to fail instead, or --policy saturate to clamp.

With --wasm the sum is computed by a built WebAssembly binding.`,
		Example: `  sumx eval 2 2
  sumx eval 2147483647 1 --policy saturate
  sumx eval -- -5 5
  sumx eval 40 2 --wasm dist/wasip1-wasm/sum-wasip1/sum.wasm`,
		Args: cobra.ExactArgs(2),
		RunE: runEval,
	}
)

func init() {
	f := evalCmd.Flags()
	f.StringVarP(&eFlags.policy, "policy", "p", string(arith.PolicyWrap), "overflow policy: "+policyNames())
	f.StringVar(&eFlags.wasm, "wasm", "", "evaluate through a WebAssembly binding")

	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	a, b, err := parseOperands(args)
	if err != nil {
		return err
	}

	policy, err := arith.ParsePolicy(eFlags.policy)
	if err != nil {
		return err
	}

	var result int32
	if eFlags.wasm != "" {
		if policy != arith.PolicyWrap {
			return errors.New("--wasm only supports the wrap policy")
		}
		result, err = evalWasm(cmd, eFlags.wasm, a, b)
	} else {
		result, err = policy.Apply(a, b)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

func evalWasm(cmd *cobra.Command, path string, a, b int32) (int32, error) {
	ctx := cmd.Context()
	m, err := host.LoadFile(ctx, path,
		host.WithLogger(logger.With(zap.String("artifact", path))),
		host.WithStderr(cmd.ErrOrStderr()),
	)
	if err != nil {
		return 0, err
	}
	defer m.Close(ctx)

	return m.Sum(ctx, a, b)
}

func parseOperands(args []string) (a, b int32, err error) {
	x, err := parseInt32(args[0])
	if err != nil {
		return 0, 0, err
	}
	y, err := parseInt32(args[1])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid operand %q: want a 32-bit integer", s)
	}
	return int32(n), nil
}

func policyNames() string {
	names := make([]string, len(arith.Policies))
	for i, p := range arith.Policies {
		names[i] = p.String()
	}
	return strings.Join(names, ", ")
}
