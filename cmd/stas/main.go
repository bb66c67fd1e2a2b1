// Command stas is the stannel assembler: it turns wire-level assembly
// text (spec §4.5, §6) into a flat byte vector.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stannel/internal/asm"
	"stannel/internal/buildinfo"
)

var (
	output      = flag.String("o", "", "path to write the assembled binary to")
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
		fmt.Fprintln(os.Stderr, "usage: stas [-o path] [-v] <input>")
		os.Exit(2)
	}
	if *output == "" {
		fmt.Fprintln(os.Stderr, "stas: -o is required")
		os.Exit(2)
	}

	log := newLogger(*verbose)
	defer log.Sync()

	if err := run(flag.Arg(0), *output, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath string, log *zap.SugaredLogger) error {
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}

	log.Debugw("assembling", "path", inputPath, "bytes", len(src))
	bytecode, err := asm.Assemble(string(src))
	if err != nil {
		return err
	}

	log.Debugw("writing binary", "path", outputPath, "bytes", len(bytecode))
	if err := os.WriteFile(outputPath, bytecode, 0o644); err != nil {
		return errors.Wrap(err, "writing output")
	}
	return nil
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
