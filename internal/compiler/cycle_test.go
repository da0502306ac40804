package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/ir"
)

func moduleUnit(name string, imports []string, using ...ast.UsingAlias) Unit {
	return Unit{Path: name + ".car", Doc: ir.Compile(&ast.Protocol{Name: name, Imports: imports, Using: using})}
}

func TestAnalyzeImports_Empty(t *testing.T) {
	warnings := AnalyzeImports(nil)
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings)
}

func TestAnalyzeImports_DAG(t *testing.T) {
	units := []Unit{
		moduleUnit("App", []string{"Token", "Registry"}),
		moduleUnit("Token", []string{"Registry"}),
		moduleUnit("Registry", nil),
	}
	assert.Empty(t, AnalyzeImports(units))
}

func TestAnalyzeImports_SelfAndMissingIgnored(t *testing.T) {
	units := []Unit{
		moduleUnit("App", []string{"App", "Elsewhere"}),
	}
	assert.Empty(t, AnalyzeImports(units))
}

func TestAnalyzeImports_Cycle(t *testing.T) {
	units := []Unit{
		moduleUnit("A", []string{"B"}),
		moduleUnit("B", nil, ast.UsingAlias{Module: "C", Alias: "c"}),
		moduleUnit("C", []string{"A"}),
		moduleUnit("D", []string{"A"}),
	}
	warnings := AnalyzeImports(units)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, warnings[0].Path)
	assert.Equal(t, "import cycle: A -> B -> C -> A", warnings[0].Message)
	assert.Equal(t, "warning", warnings[0].Level)
}

func TestAnalyzeImports_TwoCycles(t *testing.T) {
	units := []Unit{
		moduleUnit("Y", []string{"Z"}),
		moduleUnit("Z", []string{"Y"}),
		moduleUnit("A", []string{"B"}),
		moduleUnit("B", []string{"A"}),
	}
	warnings := AnalyzeImports(units)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"A", "B", "A"}, warnings[0].Path)
	assert.Equal(t, []string{"Y", "Z", "Y"}, warnings[1].Path)
}
