package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tessel-lang/tessel/internal/log"
	"github.com/tessel-lang/tessel/ir"
	"github.com/tessel-lang/tessel/parser"
	"github.com/tessel-lang/tessel/transform"
)

var OptCmd = &cobra.Command{
	Use:          "opt file.tes",
	Short:        "Optimize a kernel dump",
	RunE:         runOpt,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	optOutPath *string
	logLevel   *int
)

func init() {
	optOutPath = OptCmd.Flags().StringP("out", "o", "", "output path")
	logLevel = OptCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
}

func runOpt(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))

	k, err := loadKernel(args[0])
	if err != nil {
		return err
	}

	res := transform.Eliminate(k)
	fields := ir.FieldsReferenced(k)
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: eliminated %d statements in %d passes, %d fields referenced\n",
		k.Name, res.Eliminated.Len(), res.Iterations, fields.Size())

	rendered := ir.KernelString(k)
	if *optOutPath == "" {
		fmt.Print(rendered)
		return nil
	}
	if err := os.WriteFile(*optOutPath, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("could not write optimized kernel: %w", err)
	}
	return nil
}

func loadKernel(arg string) (*ir.Kernel, error) {
	target, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of target: %w", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("could not read target: %w", err)
	}
	k, err := parser.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", arg, err)
	}
	return k, nil
}
