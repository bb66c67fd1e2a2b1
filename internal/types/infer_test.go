package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stannel/internal/lexer"
	"stannel/internal/parser"
)

func mustInfer(t *testing.T, src string) map[string]*Type {
	t.Helper()
	toks, errs := lexer.New([]byte(src)).Tokenize()
	require.True(t, errs.Empty(), "unexpected lex errors: %v", errs)
	prog, err := parser.New(toks).ParseProgram()
	require.NoError(t, err)
	result, err := NewInferencer().Infer(prog)
	require.NoError(t, err)
	return result
}

func TestInferArithmeticMain(t *testing.T) {
	result := mustInfer(t, "main = 1 2 +")
	main := result["main"]
	require.Equal(t, TFunction, main.Kind)
	require.Equal(t, SGeneric, main.In.Kind)
	require.Equal(t, SCons, main.Out.Kind)
}

func TestInferCallsHelperDeclaration(t *testing.T) {
	result := mustInfer(t, "double = dup +\nmain = 3 double")
	require.Contains(t, result, "double")
	require.Contains(t, result, "main")
}

func TestInferIfThenElseBothBranchesPushInt(t *testing.T) {
	result := mustInfer(t, "main = 1 2 if (<) then (7) else (13)")
	require.Contains(t, result, "main")
}

func TestInferWhileLoop(t *testing.T) {
	result := mustInfer(t, "main = while (0 0 ==) do (1 drop)")
	require.Contains(t, result, "main")
}

func TestInferUnknownNameIsError(t *testing.T) {
	toks, errs := lexer.New([]byte("main = undefinedThing")).Tokenize()
	require.True(t, errs.Empty())
	prog, err := parser.New(toks).ParseProgram()
	require.NoError(t, err)
	_, err = NewInferencer().Infer(prog)
	require.Error(t, err)
}

func TestInferRepeatZeroIsError(t *testing.T) {
	toks, errs := lexer.New([]byte("main = 0 repeat_0 (1 +)")).Tokenize()
	require.True(t, errs.Empty())
	prog, err := parser.New(toks).ParseProgram()
	require.NoError(t, err)
	_, err = NewInferencer().Infer(prog)
	require.Error(t, err)
}

func TestInferMissingMainIsError(t *testing.T) {
	toks, errs := lexer.New([]byte("helper = 1 2 +")).Tokenize()
	require.True(t, errs.Empty())
	prog, err := parser.New(toks).ParseProgram()
	require.NoError(t, err)
	_, err = NewInferencer().Infer(prog)
	require.Error(t, err)
}

func TestUnifyTypeSimpleIntMatch(t *testing.T) {
	sub, err := UnifyType(Int(), Int())
	require.NoError(t, err)
	require.NotNil(t, sub)
}

func TestUnifyTypeMismatchIsError(t *testing.T) {
	_, err := UnifyType(Int(), Bool())
	require.Error(t, err)
}

func TestUnifyGenericBindsAndInstantiates(t *testing.T) {
	g := NewIDGen()
	a := Generic(g.Type(), NoConstraints())
	sub, err := UnifyType(a, Int())
	require.NoError(t, err)
	require.Equal(t, TInt, sub.ApplyType(a).Kind)
}

func TestChanSchemeInfiniteUseByDefault(t *testing.T) {
	fresh := NewIDGen()
	fn := Builtins()["chan"].Instantiate(fresh)
	require.Equal(t, TFunction, fn.Kind)
	rx := fn.Out.Base.Top
	require.Equal(t, TChannel, rx.Kind)
	require.Equal(t, UseInfinity, rx.Use.Kind)
}

func TestChanScheme3InstantiatesConstantUse(t *testing.T) {
	fresh := NewIDGen()
	s, ok := Subscripted(fresh, "chan", 3)
	require.True(t, ok)
	fn := s.Instantiate(fresh)
	rx := fn.Out.Base.Top
	require.Equal(t, UseConstant, rx.Use.Kind)
	require.Equal(t, uint64(3), rx.Use.Const)
}
