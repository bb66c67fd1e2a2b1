// Command stsim is the stannel simulator: it loads assembled bytecode and
// runs it to completion on an N-core lockstep processor (spec §4.8, §6).
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"stannel/internal/buildinfo"
	"stannel/internal/execunit"
	"stannel/internal/isa"
	"stannel/internal/process"
	"stannel/internal/sim"
)

var (
	cores       = flag.Int("cores", 4, "number of cores to simulate")
	maxTicks    = flag.Int("max-ticks", 1_000_000, "abort if the processor hasn't halted after this many ticks")
	verbose     = flag.Bool("v", false, "produce verbose output")
	showVersion = flag.Bool("version", false, "print the build version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version())
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: stsim [-cores N] [-v] <input>")
		os.Exit(2)
	}

	log := newLogger(*verbose)
	defer log.Sync()

	if err := run(flag.Arg(0), *cores, *maxTicks, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(inputPath string, numCores, maxTicks int, log *zap.SugaredLogger) error {
	bytecode, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	p := sim.NewProcessor(numCores)
	p.SetInstructions(bytecode)
	p.Trace = func(pid process.Pid, pc uint16, instr isa.Instruction, msg execunit.CoreMessage, stack []uint16) {
		log.Debugw("tick",
			"pid", pid,
			"pc", pc,
			"instr", instr.Mnemonic(),
			"message", msg.Kind,
			"stack", stack,
		)
	}

	if _, err := p.StartMain(0); err != nil {
		return err
	}

	for i := 0; i < maxTicks; i++ {
		halted, err := p.Tick()
		if err != nil {
			return err
		}
		if halted {
			printFinalStacks(p)
			return nil
		}
	}
	return fmt.Errorf("simulator: did not halt within %d ticks", maxTicks)
}

func printFinalStacks(p *sim.Processor) {
	for i := 0; ; i++ {
		stack, ok := p.FinalStack(i)
		if !ok {
			return
		}
		fmt.Printf("final_stack(%d) = %v\n", i, stack)
	}
}

func newLogger(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar()
}
