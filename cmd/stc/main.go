// Command stc is the stannel compiler: it lexes, parses, type-checks and
// lowers a source program to wire-level assembly text (spec §6).
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"stannel/internal/ast"
	"stannel/internal/buildinfo"
	"stannel/internal/codegen"
	"stannel/internal/diag"
	"stannel/internal/lexer"
	"stannel/internal/parser"
	"stannel/internal/types"
)

var (
	output      = flag.String("o", "", "path to write the generated assembly to")
	dumpTypes   = flag.Bool("t", false, "print each declaration's inferred type to stdout")
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
		fmt.Fprintln(os.Stderr, "usage: stc [-o path] [-t] [-v] <input>")
		os.Exit(2)
	}
	if *output == "" {
		fmt.Fprintln(os.Stderr, "stc: -o is required")
		os.Exit(2)
	}

	log := newLogger(*verbose)
	defer log.Sync()

	if err := run(flag.Arg(0), *output, *dumpTypes, log); err != nil {
		fmt.Fprintln(os.Stderr, diagLine(err))
		os.Exit(1)
	}
}

func run(inputPath, outputPath string, dumpTypes bool, log *zap.SugaredLogger) error {
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	log.Debugw("lexing", "path", inputPath, "bytes", len(src))
	toks, errs := lexer.New(src).Tokenize()
	if !errs.Empty() {
		return errs
	}

	log.Debugw("parsing", "tokens", len(toks))
	prog, err := parser.New(toks).ParseProgram()
	if err != nil {
		return err
	}

	log.Debugw("inferring types", "declarations", len(prog.Declarations))
	sigs, err := types.NewInferencer().Infer(prog)
	if err != nil {
		return err
	}
	if dumpTypes {
		printTypes(prog, sigs)
	}

	log.Debugw("generating code")
	blocks, err := codegen.Generate(prog)
	if err != nil {
		return err
	}

	text := codegen.Render(blocks)
	log.Debugw("writing assembly", "path", outputPath, "bytes", len(text))
	return os.WriteFile(outputPath, []byte(text), 0o644)
}

// printTypes prints each declaration's inferred type in main-first, then
// declaration order, matching the order codegen itself processes them in.
func printTypes(prog *ast.Program, sigs map[string]*types.Type) {
	printed := make(map[string]bool)
	order := []string{"main"}
	for _, d := range prog.Declarations {
		if d.Name != "main" {
			order = append(order, d.Name)
		}
	}
	for _, name := range order {
		if printed[name] {
			continue
		}
		printed[name] = true
		if t, ok := sigs[name]; ok {
			fmt.Printf("%s :: %s\n", name, t)
		}
	}
}

// diagLine reduces any error returned by the pipeline to the single-line,
// phase-prefixed diagnostic spec §6 requires. Errors that already
// implement diag.Diagnostic render themselves; codegen's plain errors fall
// back to a literal "Codegen:" prefix.
func diagLine(err error) string {
	if d, ok := err.(diag.Diagnostic); ok {
		if l, ok := d.(*diag.List); ok && len(l.Errs) > 0 {
			return l.Errs[0].Error()
		}
		return d.Error()
	}
	return fmt.Sprintf("%s: %v", diag.PhaseCodegen, err)
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
