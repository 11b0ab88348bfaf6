// Command cppc is the C++ subset compiler frontend's driver: read
// source -> lex -> parse -> monomorphize templates -> lower to IR ->
// emit machine code -> write a relocatable object file.
//
// Grounded on cmd/ralph-cc/main.go's cobra-based driver: the same
// CompCert-style single-dash debug-flag normalization, a root command
// with one positional source argument, and one `do<Stage>` function per
// intermediate representation a `-d<stage>` flag can dump.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/concepts"
	"github.com/cppc-project/cppc/pkg/emitter"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/irbuilder"
	"github.com/cppc-project/cppc/pkg/lexer"
	"github.com/cppc-project/cppc/pkg/mangle"
	"github.com/cppc-project/cppc/pkg/objwriter"
	"github.com/cppc-project/cppc/pkg/objwriter/coff"
	"github.com/cppc-project/cppc/pkg/objwriter/elf"
	"github.com/cppc-project/cppc/pkg/parser"
	"github.com/cppc-project/cppc/pkg/templates"
	"github.com/cppc-project/cppc/pkg/types"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Debug flags for dumping intermediate stages (cmd/ralph-cc/main.go's
// dParse/dAsm/... family, renamed to this pipeline's own stage names).
var (
	dParse    bool
	dTemplate bool
	dIR       bool
	dAsm      bool
)

// Target/preprocessor-adjacent options.
var (
	target       string
	includePaths []string
	defineFlags  []string
	undefineFlags []string
	outputPath   string
)

// debugFlagNames lists every single-dash CompCert-style debug flag this
// driver accepts (cmd/ralph-cc/main.go's normalizeFlags).
var debugFlagNames = []string{"dparse", "dtemplate", "dir", "dasm"}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// normalizeFlags rewrites CompCert-style single-dash flags like -dparse
// to --dparse, the same compatibility shim cmd/ralph-cc/main.go applies
// before handing arguments to pflag.
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = arg
		for _, name := range debugFlagNames {
			if arg == "-"+name {
				result[i] = "--" + name
				break
			}
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cppc [file]",
		Short: "cppc compiles a C++ subset directly to a relocatable object file",
		Long: `cppc lexes, parses, monomorphizes templates, lowers to a typed
intermediate representation, and emits x86-64 machine code into an
ELF or COFF relocatable object, without shelling out to an external
assembler or linker.`,
		Version:      version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			switch {
			case dParse:
				return doParse(filename, out, errOut)
			case dTemplate:
				return doTemplate(filename, out, errOut)
			case dIR:
				return doIR(filename, out, errOut)
			case dAsm:
				return doAsm(filename, out, errOut)
			}
			return doCompile(filename, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dParse, "dparse", false, "dump the parsed AST")
	rootCmd.Flags().BoolVar(&dTemplate, "dtemplate", false, "dump template instantiations after monomorphization")
	rootCmd.Flags().BoolVar(&dIR, "dir", false, "dump the lowered IR")
	rootCmd.Flags().BoolVar(&dAsm, "dasm", false, "dump the emitted object's function/relocation summary")

	rootCmd.Flags().StringVar(&target, "target", "elf", "output object format: elf or coff")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output object file path (default: input with .o/.obj extension)")
	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "add directory to include search path (unused by this subset's lexer, accepted for CLI compatibility)")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "define macro (unused by this subset's lexer, accepted for CLI compatibility)")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "undefine macro (unused by this subset's lexer, accepted for CLI compatibility)")

	return rootCmd
}

// pipeline bundles what every stage from parsing onward shares: the
// interner and type registry, since both the template engine and
// irbuilder need to resolve and register the same descriptors.
type pipeline struct {
	strs   *intern.Table
	reg    *types.Registry
	prog   *ast.Program
	psr    *parser.Parser
	concepts *concepts.Registry
}

func lexAndParse(filename string, errOut io.Writer) (*pipeline, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "cppc: error reading %s: %v\n", filename, err)
		return nil, err
	}
	toks := lexer.Tokenize(string(content), 0)
	stream := lexer.NewStream(toks)
	prog, psr := parser.Parse(stream)
	if len(psr.Errors()) > 0 {
		for _, e := range psr.Errors() {
			fmt.Fprintf(errOut, "%s: %s\n", filename, e)
		}
		return nil, fmt.Errorf("parsing failed with %d errors", len(psr.Errors()))
	}

	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	conceptReg := concepts.NewRegistry()
	for _, d := range prog.Decls {
		if cd, ok := d.(*ast.ConceptDecl); ok {
			conceptReg.Register(cd)
		}
	}
	return &pipeline{strs: strs, reg: reg, prog: prog, psr: psr, concepts: conceptReg}, nil
}

// expand runs the monomorphization pass
// between parsing and IR lowering.
func (p *pipeline) expand(errOut io.Writer) error {
	errs := templates.Expand(p.prog, p.psr.Engine(), p.reg, p.strs, p.concepts)
	for _, e := range errs {
		fmt.Fprintf(errOut, "cppc: template error: %v\n", e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("template expansion failed with %d errors", len(errs))
	}
	return nil
}

func schemeForTarget(target string) (mangle.Scheme, objwriter.Writer, error) {
	switch target {
	case "elf", "":
		return mangle.Itanium, elf.New(), nil
	case "coff":
		return mangle.MSVC, coff.New(), nil
	default:
		return 0, nil, fmt.Errorf("unknown target %q (want elf or coff)", target)
	}
}

func defaultOutputPath(filename, target string) string {
	ext := ".o"
	if target == "coff" {
		ext = ".obj"
	}
	for _, in := range []string{".cpp", ".cc", ".cxx"} {
		if strings.HasSuffix(filename, in) {
			return filename[:len(filename)-len(in)] + ext
		}
	}
	return filename + ext
}

// doCompile runs the full pipeline and writes the object file cobra's
// RunE falls through to by default.
func doCompile(filename string, out, errOut io.Writer) error {
	p, err := lexAndParse(filename, errOut)
	if err != nil {
		return err
	}
	if err := p.expand(errOut); err != nil {
		return err
	}
	scheme, writer, err := schemeForTarget(target)
	if err != nil {
		fmt.Fprintf(errOut, "cppc: %v\n", err)
		return err
	}
	irProg, diags := irbuilder.BuildProgram(p.prog, p.reg, p.strs, scheme)
	for _, d := range diags {
		fmt.Fprintf(errOut, "cppc: %v\n", d)
	}
	if len(diags) > 0 {
		return fmt.Errorf("ir lowering failed with %d errors", len(diags))
	}
	obj, err := emitter.Emit(irProg, p.strs)
	if err != nil {
		fmt.Fprintf(errOut, "cppc: emit error: %v\n", err)
		return err
	}
	bytes, err := writer.Write(obj)
	if err != nil {
		fmt.Fprintf(errOut, "cppc: object-writer error: %v\n", err)
		return err
	}
	outPath := outputPath
	if outPath == "" {
		outPath = defaultOutputPath(filename, target)
	}
	if err := os.WriteFile(outPath, bytes, 0o644); err != nil {
		fmt.Fprintf(errOut, "cppc: error writing %s: %v\n", outPath, err)
		return err
	}
	fmt.Fprintf(out, "cppc: wrote %s\n", outPath)
	return nil
}

// doParse parses filename and dumps a summary of the translation unit's
// top-level declarations (cmd/ralph-cc/main.go's doParse prints the
// parsed cabs.Program via a dedicated printer; pkg/ast has no such
// printer, so this dumps one line per top-level declaration kind/name
// instead).
func doParse(filename string, out, errOut io.Writer) error {
	p, err := lexAndParse(filename, errOut)
	if err != nil {
		return err
	}
	dumpDecls(out, p.prog.Decls, 0)
	return nil
}

// doTemplate parses, runs monomorphization, and dumps every
// instantiation the pass spliced into the program.
func doTemplate(filename string, out, errOut io.Writer) error {
	p, err := lexAndParse(filename, errOut)
	if err != nil {
		return err
	}
	before := len(p.prog.Decls)
	if err := p.expand(errOut); err != nil {
		return err
	}
	fmt.Fprintf(out, "cppc: %d template instantiation(s)\n", len(p.prog.Decls)-before)
	dumpDecls(out, p.prog.Decls[before:], 0)
	return nil
}

// doIR parses, expands templates, lowers to IR, and dumps one line per
// function/global.
func doIR(filename string, out, errOut io.Writer) error {
	p, err := lexAndParse(filename, errOut)
	if err != nil {
		return err
	}
	if err := p.expand(errOut); err != nil {
		return err
	}
	scheme, _, err := schemeForTarget(target)
	if err != nil {
		fmt.Fprintf(errOut, "cppc: %v\n", err)
		return err
	}
	irProg, diags := irbuilder.BuildProgram(p.prog, p.reg, p.strs, scheme)
	for _, d := range diags {
		fmt.Fprintf(errOut, "cppc: %v\n", d)
	}
	dumpIR(out, irProg)
	return nil
}

// doAsm parses, expands, lowers, emits, and dumps a summary of the
// emitted object's function code sizes and relocations, without
// writing a final object file.
func doAsm(filename string, out, errOut io.Writer) error {
	p, err := lexAndParse(filename, errOut)
	if err != nil {
		return err
	}
	if err := p.expand(errOut); err != nil {
		return err
	}
	scheme, _, err := schemeForTarget(target)
	if err != nil {
		fmt.Fprintf(errOut, "cppc: %v\n", err)
		return err
	}
	irProg, diags := irbuilder.BuildProgram(p.prog, p.reg, p.strs, scheme)
	for _, d := range diags {
		fmt.Fprintf(errOut, "cppc: %v\n", d)
	}
	obj, err := emitter.Emit(irProg, p.strs)
	if err != nil {
		fmt.Fprintf(errOut, "cppc: emit error: %v\n", err)
		return err
	}
	dumpObject(out, obj)
	return nil
}

func dumpDecls(out io.Writer, decls []ast.Decl, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, d := range decls {
		switch n := d.(type) {
		case *ast.StructDecl:
			fmt.Fprintf(out, "%sstruct %s (%d members)\n", indent, n.Name, len(n.Members))
			dumpDecls(out, n.Members, depth+1)
		case *ast.FunctionDecl:
			fmt.Fprintf(out, "%sfunc %s%s (%d params, body=%v)\n", indent, n.Qualifier, nameWithDot(n), len(n.Params), n.Body != nil)
		case *ast.VarDecl:
			fmt.Fprintf(out, "%svar %s\n", indent, n.Name)
		case *ast.EnumDecl:
			fmt.Fprintf(out, "%senum %s (%d constants)\n", indent, n.Name, len(n.Constants))
		case *ast.NamespaceDecl:
			fmt.Fprintf(out, "%snamespace %s\n", indent, n.Name)
			dumpDecls(out, n.Decls, depth+1)
		case *ast.TemplateDecl:
			fmt.Fprintf(out, "%stemplate<%d params>\n", indent, len(n.Params))
			dumpDecls(out, []ast.Decl{n.Body}, depth+1)
		case *ast.AliasDecl:
			fmt.Fprintf(out, "%susing %s\n", indent, n.Name)
		case *ast.ConceptDecl:
			fmt.Fprintf(out, "%sconcept %s\n", indent, n.Name)
		}
	}
}

func nameWithDot(fn *ast.FunctionDecl) string {
	if fn.Qualifier != "" {
		return "::" + fn.Name
	}
	return fn.Name
}

func dumpIR(out io.Writer, prog *ir.Program) {
	for _, g := range prog.Globals {
		fmt.Fprintf(out, "global %s (%d bytes)\n", g.Name, g.Size)
	}
	for _, f := range prog.Functions {
		fmt.Fprintf(out, "func %s (%d params, %d nodes)\n", f.Name, len(f.Params), len(f.Code))
	}
}

func dumpObject(out io.Writer, obj *emitter.Object) {
	for _, f := range obj.Functions {
		fmt.Fprintf(out, "func %s: %d bytes, %d relocations\n", f.Name, len(f.Code), len(f.Relocs))
	}
	for _, g := range obj.Globals {
		fmt.Fprintf(out, "global %s: %d bytes (readonly=%v)\n", g.Name, g.Size, g.ReadOnly)
	}
	for _, r := range obj.Rodata {
		fmt.Fprintf(out, "rodata %s: %d bytes\n", r.Label, len(r.Bytes))
	}
}
