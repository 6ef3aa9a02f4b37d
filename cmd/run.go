package cmd

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/tessel-lang/tessel/backend"
	"github.com/tessel-lang/tessel/internal/log"
	"github.com/tessel-lang/tessel/transform"
)

var RunCmd = &cobra.Command{
	Use:          "run file.tes",
	Short:        "Execute a kernel dump through the Go backend",
	RunE:         runRun,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	runArgs   *[]int64
	runNoOpt  *bool
	runEmitGo *bool
)

func init() {
	runArgs = RunCmd.Flags().Int64Slice("arg", nil, "kernel scalar arguments, in order")
	runNoOpt = RunCmd.Flags().Bool("no-opt", false, "skip whole-kernel CSE before running")
	runEmitGo = RunCmd.Flags().Bool("emit-go", false, "print the generated Go instead of running it")
}

func runRun(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.LevelError)

	k, err := loadKernel(args[0])
	if err != nil {
		return err
	}
	if !*runNoOpt {
		transform.WholeKernelCSE(k)
	}

	program := backend.Program{Kernel: k, Args: *runArgs}
	if *runEmitGo {
		src, err := backend.Source(program)
		if err != nil {
			return fmt.Errorf("could not transpile kernel: %w", err)
		}
		fmt.Println(src)
		return nil
	}

	outcome, err := backend.Exec(program)
	if err != nil {
		return fmt.Errorf("could not run kernel: %w", err)
	}
	for _, f := range k.Fields {
		cells := outcome.Fields[f]
		keys := make([]int64, 0, len(cells))
		for key := range cells {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			fmt.Printf("%s[%d] = %d\n", f, key, cells[key])
		}
	}
	return nil
}
