package lang

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kstephano/kayvm/asm"
	"github.com/kstephano/kayvm/constpool"
	"github.com/kstephano/kayvm/hostfn"
)

// UnsupportedError is returned when the generator encounters an AST form
// it deliberately does not lower — per spec.md §9, unimplemented forms
// must surface as "unsupported", never be silently approximated.
type UnsupportedError struct{ What string }

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("lang: unsupported: %s", e.What)
}

// Generator lowers a toy-language statement stream to bytecode against
// the assembler and constant-pool contracts, exactly per spec.md §4.7.
type Generator struct {
	builder *asm.Builder
	consts  *constpool.Pool
	hosts   *hostfn.Registry

	vars    map[string]byte
	nextReg byte
}

// NewGenerator returns a Generator writing into b, resolving constants
// through consts and host functions through hosts.
func NewGenerator(b *asm.Builder, consts *constpool.Pool, hosts *hostfn.Registry) *Generator {
	return &Generator{
		builder: b,
		consts:  consts,
		hosts:   hosts,
		vars:    make(map[string]byte),
		// Register 0 is reserved for a host-call base, per spec.md §4.7.
		nextReg: 1,
	}
}

// Generate lowers every statement in order. It returns the first
// UnsupportedError it encounters rather than continuing past it.
func (g *Generator) Generate(stmts []Stmt) error {
	for _, s := range stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genStmt(s Stmt) error {
	switch s.Kind {
	case StmtAssign:
		reg, err := g.genExprInto(s.Expr)
		if err != nil {
			return err
		}
		dst := g.regFor(s.Ident)
		if dst != reg {
			g.builder.AddI64(reg, g.zeroReg(), dst)
		}
		return nil
	case StmtExpr:
		if s.Expr.Kind == ExprCall {
			return g.genCall(s.Expr)
		}
		_, err := g.genExprInto(s.Expr)
		return err
	}
	return errors.WithStack(&UnsupportedError{What: "unknown statement kind"})
}

// regFor returns the register allocated to name, allocating a new,
// monotonically increasing one on first use.
func (g *Generator) regFor(name string) byte {
	if r, ok := g.vars[name]; ok {
		return r
	}
	r := g.nextReg
	g.nextReg++
	g.vars[name] = r
	return r
}

// zeroReg returns a register that is never written by generated code and
// therefore always reads as zero, used as an additive identity when a
// generated value must be copied into a variable's home register.
func (g *Generator) zeroReg() byte { return 255 }

// genExprInto lowers expr and returns the register holding its value.
func (g *Generator) genExprInto(expr Expr) (byte, error) {
	switch expr.Kind {
	case ExprInt:
		idx := g.consts.AddValue("", uint64(expr.IntVal), constpool.I64)
		dst := g.scratchReg()
		g.builder.LoadConstValue(uint16(idx), dst)
		return dst, nil

	case ExprIdent:
		r, ok := g.vars[expr.Ident]
		if !ok {
			return 0, errors.WithStack(&UnsupportedError{What: fmt.Sprintf("reference to undefined variable %q", expr.Ident)})
		}
		return r, nil

	case ExprBinaryAdd:
		l, err := g.genExprInto(*expr.Left)
		if err != nil {
			return 0, err
		}
		r, err := g.genExprInto(*expr.Right)
		if err != nil {
			return 0, err
		}
		dst := g.scratchReg()
		g.builder.AddI64(l, r, dst)
		return dst, nil

	case ExprStr:
		idx := g.consts.AddSlice("", []byte(expr.StrVal), constpool.UTF8)
		dst := g.scratchReg()
		g.builder.LoadConstSlice(uint16(idx), dst)
		return dst, nil

	case ExprInterp:
		return 0, errors.WithStack(&UnsupportedError{What: "interpolated string expressions are deferred"})

	case ExprCall:
		return 0, errors.WithStack(&UnsupportedError{What: fmt.Sprintf("call to %q used as a value (only print-like statement calls are supported)", expr.CallName)})
	}
	return 0, errors.WithStack(&UnsupportedError{What: "unknown expression kind"})
}

// scratchReg allocates a fresh register for an intermediate value. Unlike
// regFor, it is never reused for a named variable.
func (g *Generator) scratchReg() byte {
	r := g.nextReg
	g.nextReg++
	return r
}

// genCall lowers a print-like host call: load the host-function index
// into a base register, load arguments into successive registers, and
// emit call_host(base). For integer arguments, insert a zero-length
// sentinel into the slice-length slot so the host can distinguish
// "printed as integer" from "printed as string".
func (g *Generator) genCall(expr Expr) error {
	idx, ok := g.hosts.IndexOf(expr.CallName)
	if !ok {
		return errors.WithStack(&UnsupportedError{What: fmt.Sprintf("call to unregistered host function %q", expr.CallName)})
	}
	if len(expr.CallArgs) != 1 {
		return errors.WithStack(&UnsupportedError{What: fmt.Sprintf("call to %q with %d arguments (only single-argument print-like calls are supported)", expr.CallName, len(expr.CallArgs))})
	}

	base := g.scratchReg()
	constIdx := g.consts.AddValue("", uint64(idx), constpool.HostFunc)
	g.builder.LoadConstValue(uint16(constIdx), base)

	arg := expr.CallArgs[0]
	switch arg.Kind {
	case ExprInt:
		valIdx := g.consts.AddValue("", uint64(arg.IntVal), constpool.I64)
		g.builder.LoadConstValue(uint16(valIdx), g.scratchReg())
		// Sentinel: a zero-length slot marks this argument as an
		// integer, not a UTF-8 slice.
		zeroLen := g.consts.AddValue("", 0, constpool.I64)
		g.builder.LoadConstValue(uint16(zeroLen), g.scratchReg())

	case ExprStr:
		sliceIdx := g.consts.AddSlice("", []byte(arg.StrVal), constpool.UTF8)
		g.builder.LoadConstSlice(uint16(sliceIdx), g.scratchReg())
		// LoadConstSlice already wrote the length into headReg+1.
		g.nextReg++

	case ExprIdent:
		r, ok := g.vars[arg.Ident]
		if !ok {
			return errors.WithStack(&UnsupportedError{What: fmt.Sprintf("reference to undefined variable %q", arg.Ident)})
		}
		g.builder.AddI64(r, g.zeroReg(), g.scratchReg())
		zeroLen := g.consts.AddValue("", 0, constpool.I64)
		g.builder.LoadConstValue(uint16(zeroLen), g.scratchReg())

	default:
		return errors.WithStack(&UnsupportedError{What: "unsupported print argument expression"})
	}

	g.builder.CallHost(uint16(base))
	return nil
}
