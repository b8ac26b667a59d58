// Command kayvm compiles a toy-language program and runs it, or
// disassembles a raw bytecode file. Generalizes the teacher repo's
// flag-driven main.go to a cobra command tree with structured logging.
package main

import (
	"bufio"
	"os"
	"time"

	"github.com/kstephano/kayvm/asm"
	"github.com/kstephano/kayvm/constpool"
	"github.com/kstephano/kayvm/disasm"
	"github.com/kstephano/kayvm/hostfn"
	"github.com/kstephano/kayvm/hostlib"
	"github.com/kstephano/kayvm/lang"
	"github.com/kstephano/kayvm/vm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()

	var logLevel string
	var trace bool
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "kayvm",
		Short: "register VM, bytecode assembler, and toy-language runner",
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "panic|fatal|error|warn|info|debug|trace")
	root.PersistentFlags().BoolVar(&trace, "trace", false, "emit a structured log line per executed instruction")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "wall-clock execution deadline (0 disables)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	}

	root.AddCommand(newRunCmd(log, &trace, &timeout))
	root.AddCommand(newDisasmCmd())

	if err := root.Execute(); err != nil {
		log.WithError(err).Fatal("kayvm: command failed")
	}
}

func newRunCmd(log *logrus.Logger, trace *bool, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.kay>",
		Short: "compile a toy-language source file and execute it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			stmts, err := lang.NewParser(string(src)).ParseProgram()
			if err != nil {
				return err
			}

			consts := constpool.New()
			hosts := hostfn.New()
			w := bufio.NewWriter(os.Stdout)
			defer w.Flush()
			console := hostlib.NewConsole(w)
			console.RegisterPrint(hosts)
			hostlib.NewVecHost().RegisterAll(hosts)

			b := asm.New()
			gen := lang.NewGenerator(b, consts, hosts)
			if err := gen.Generate(stmts); err != nil {
				return err
			}
			program := b.Build()

			m := vm.FromParts(consts, hosts)
			if *trace {
				m.WithTrace(log)
			}
			return m.EvalProgramWithTimeout(program, *timeout)
		},
	}
}

func newDisasmCmd() *cobra.Command {
	var typed bool

	cmd := &cobra.Command{
		Use:   "disasm <file.bin>",
		Short: "disassemble a raw bytecode file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			if !typed {
				out, err := disasm.Disassemble(data)
				if err != nil {
					return err
				}
				_, err = os.Stdout.WriteString(out)
				return err
			}

			// --typed annotates register operands with the advisory tags
			// a run of the program leaves behind in its type table; the
			// run's own outcome (success or a dispatcher error) is
			// irrelevant to rendering, only the tags it managed to write.
			m := vm.FromParts(constpool.New(), hostfn.New())
			_ = m.EvalProgram(data)
			out, err := disasm.DisassembleTyped(data, m.Types)
			if err != nil {
				return err
			}
			_, err = os.Stdout.WriteString(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&typed, "typed", false, "annotate register operands with advisory type tags from a trial run")
	return cmd
}
