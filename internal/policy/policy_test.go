package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
)

const testPolicy = `package assetscan

import rego.v1

suppress contains i if {
	some i, r in input.records
	startswith(r.signal, "dbg_")
}

overrides contains {"index": i, "cia": "CIA"} if {
	some i, r in input.records
	r.category == "Config"
	r.source_file == "crypto.v"
}
`

func records() []asset.Record {
	return []asset.Record{
		{Signal: "en", Width: asset.Bits(1), Category: asset.Control, AppearedIn: asset.ContextIfElse, SourceFile: "crypto.v", CIA: "A"},
		{Signal: "dbg_mode", Width: asset.Bits(2), Category: asset.Config, AppearedIn: asset.ContextIfElse, SourceFile: "crypto.v", CIA: "IA"},
		{Signal: "key_sel", Width: asset.Bits(3), Category: asset.Config, AppearedIn: asset.ContextCase, SourceFile: "crypto.v", CIA: "IA"},
	}
}

func TestApplySuppressesAndRetags(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets.rego"), []byte(testPolicy), 0o644))

	engine, err := New(dir)
	require.NoError(t, err)

	res, err := engine.Apply(context.Background(), records())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Suppressed)
	assert.Equal(t, 1, res.Overridden)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "en", res.Records[0].Signal)
	assert.Equal(t, "A", res.Records[0].CIA)
	assert.Equal(t, "key_sel", res.Records[1].Signal)
	assert.Equal(t, "CIA", res.Records[1].CIA)
}

func TestApplyWithUndefinedRules(t *testing.T) {
	engine, err := NewFromModules(map[string]string{
		"empty.rego": "package assetscan\n",
	})
	require.NoError(t, err)

	res, err := engine.Apply(context.Background(), records())
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Zero(t, res.Suppressed)
	assert.Zero(t, res.Overridden)
}

func TestNewRequiresPolicies(t *testing.T) {
	_, err := New(t.TempDir())
	assert.Error(t, err)
}

func TestNewRejectsInvalidModule(t *testing.T) {
	_, err := NewFromModules(map[string]string{"bad.rego": "package assetscan\nsuppress contains"})
	assert.Error(t, err)
}
