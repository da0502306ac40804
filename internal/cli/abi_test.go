package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type abiDoc struct {
	Protocol string `json:"protocol"`
	Methods  map[string]struct {
		Params []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"params"`
		Returns *string `json:"returns"`
	} `json:"methods"`
}

func TestABI_FromSource(t *testing.T) {
	out, _, err := execute(NewABICommand(&RootOptions{Format: "text"}), counterPath)
	require.NoError(t, err)

	var doc abiDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Counter", doc.Protocol)

	returns := map[string]string{}
	for name, m := range doc.Methods {
		if m.Returns != nil {
			returns[name] = *m.Returns
		}
	}
	assert.Equal(t, map[string]string{"get": "int"}, returns)

	require.Len(t, doc.Methods["add"].Params, 1)
	assert.Equal(t, "n", doc.Methods["add"].Params[0].Name)
	assert.Equal(t, "int", doc.Methods["add"].Params[0].Type)
}

func TestABI_SameForBinaryAndSource(t *testing.T) {
	fromSource, _, err := execute(NewABICommand(&RootOptions{Format: "text"}), counterPath)
	require.NoError(t, err)
	fromBinary, _, err := execute(NewABICommand(&RootOptions{Format: "text"}), compileBinary(t))
	require.NoError(t, err)
	assert.Equal(t, fromSource, fromBinary)
}

func TestABI_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.abi.json")
	_, _, err := execute(NewABICommand(&RootOptions{Format: "text"}), counterPath, "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc abiDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Methods, 3)
}
