package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/qntx/sumx/internal/ui"
	"github.com/qntx/sumx/internal/verify"
)

type verifyFlags struct {
	jobs    int
	builtin bool
	list    bool
}

var (
	vFlags    verifyFlags
	verifyCmd = &cobra.Command{
		Use:   "verify [artifact.wasm]...",
		Short: "Check built WebAssembly bindings against native sum",
		Long: `Verify loads each WASI binding and runs the property checks
two-plus-two, negation, identity, commutativity, wrap-on-overflow and
matches-native.

Artifacts are verified in parallel, each in its own runtime. With
--builtin the in-process implementations (Go, and C when built with cgo)
are checked too. The command fails if any check fails.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if vFlags.builtin || vFlags.list {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: runVerify,
	}
)

func init() {
	f := verifyCmd.Flags()
	f.IntVarP(&vFlags.jobs, "jobs", "j", 0, "parallel verifications (default: GOMAXPROCS)")
	f.BoolVar(&vFlags.builtin, "builtin", false, "also verify the in-process implementations")
	f.BoolVar(&vFlags.list, "list", false, "list the checks and exit")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if vFlags.list {
		for _, name := range verify.Checks() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	var reports []*verify.Report
	if vFlags.builtin {
		for _, b := range verify.Builtins() {
			reports = append(reports, verify.Run(cmd.Context(), b.Name, b.Adder))
		}
	}

	if len(args) > 0 {
		ui.Step("verifying %d artifact(s)", len(args))
		files, err := verify.Files(cmd.Context(), args, vFlags.jobs, logger)
		if err != nil {
			return err
		}
		reports = append(reports, files...)
	}

	failed := 0
	for _, r := range reports {
		ui.Header(r.Source)
		for _, res := range r.Results {
			ui.Check(res.Name, res.Passed(), detail(res))
		}
		if !r.OK() {
			failed++
		}
	}

	if len(reports) > 1 {
		fmt.Fprintln(ui.Writer())
		summary(reports).Render()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d implementation(s) failed verification", failed, len(reports))
	}
	ui.Success("%d implementation(s) verified", len(reports))
	return nil
}

func summary(reports []*verify.Report) *ui.Table {
	t := ui.NewTable("ARTIFACT", "CHECKS", "FAILED", "TIME")
	for _, r := range reports {
		t.AddRow(r.Source,
			strconv.Itoa(len(r.Results)),
			strconv.Itoa(len(r.Failed())),
			ui.FormatDuration(r.Duration))
	}
	return t
}

func detail(res verify.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	return res.Detail
}
