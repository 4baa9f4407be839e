package nameresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/phpintel/internal/parser"
	"github.com/standardbeagle/phpintel/internal/types"
)

func TestQualifyClass(t *testing.T) {
	r := New("App\\Service")
	r.AddClassAlias("User", "App\\Models\\User")
	r.AddClassAlias("Alias", "Vendor\\Lib\\Thing")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"fully qualified", "\\App\\Models\\User", "App\\Models\\User"},
		{"aliased", "User", "App\\Models\\User"},
		{"alias is case insensitive", "user", "App\\Models\\User"},
		{"renamed alias", "Alias", "Vendor\\Lib\\Thing"},
		{"unaliased gets namespace prefix", "Helper", "App\\Service\\Helper"},
		{"compound head resolves through alias", "User\\Role", "App\\Models\\User\\Role"},
		{"compound without alias", "Sub\\Thing", "App\\Service\\Sub\\Thing"},
		{"namespace-relative", "namespace\\Inner", "App\\Service\\Inner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, alt := r.Qualify(tt.input, types.SymbolKindClass)
			assert.Equal(t, tt.expected, q)
			assert.Empty(t, alt, "class resolution never has a fallback")
		})
	}
}

func TestQualifyFunctionFallback(t *testing.T) {
	r := New("App")
	r.AddFunctionAlias("h", "App\\Support\\helper")

	q, alt := r.Qualify("strlen", types.SymbolKindFunction)
	assert.Equal(t, "App\\strlen", q)
	assert.Equal(t, "strlen", alt)

	q, alt = r.Qualify("h", types.SymbolKindFunction)
	assert.Equal(t, "App\\Support\\helper", q)
	assert.Empty(t, alt)

	// Global namespace needs no fallback.
	global := New("")
	q, alt = global.Qualify("strlen", types.SymbolKindFunction)
	assert.Equal(t, "strlen", q)
	assert.Empty(t, alt)
}

func TestQualifyConstCaseSensitive(t *testing.T) {
	r := New("App")
	r.AddConstAlias("MAX", "App\\Config\\MAX")

	q, alt := r.Qualify("MAX", types.SymbolKindConstant)
	assert.Equal(t, "App\\Config\\MAX", q)
	assert.Empty(t, alt)

	// Constant aliases do not fold case.
	q, alt = r.Qualify("max", types.SymbolKindConstant)
	assert.Equal(t, "App\\max", q)
	assert.Equal(t, "max", alt)
}

func TestQualifyType(t *testing.T) {
	r := New("App")
	r.AddClassAlias("User", "App\\Models\\User")

	assert.Equal(t, "App\\Models\\User", r.QualifyType("User"))
	assert.Equal(t, "App\\Models\\User", r.QualifyType("?User"))
	assert.Equal(t, "int", r.QualifyType("Int"))
	assert.Equal(t, "App\\Models\\User|null", r.QualifyType("User|null"))
	assert.Equal(t, "", r.QualifyType(""))
}

func TestPrefix(t *testing.T) {
	r := New("App\\Models")
	r.AddClassAlias("User", "Other\\User")

	// Declaration names ignore aliases.
	assert.Equal(t, "App\\Models\\User", r.Prefix("User"))
	assert.Equal(t, "Bare", New("").Prefix("Bare"))
}

func TestFromTree(t *testing.T) {
	src := []byte(`<?php
namespace App\Service;

use App\Models\User;
use App\Models\Post as Article;
use function App\Support\helper;
use const App\Config\MAX_SIZE;
use App\Events\{Created, Deleted as Removed};

$u = new User();
`)

	p, err := parser.New()
	require.NoError(t, err)
	defer p.Close()
	tree, err := p.Parse(src)
	require.NoError(t, err)
	defer tree.Close()

	r := FromTree(tree.RootNode(), src)
	assert.Equal(t, "App\\Service", r.Namespace)

	q, _ := r.Qualify("User", types.SymbolKindClass)
	assert.Equal(t, "App\\Models\\User", q)

	q, _ = r.Qualify("Article", types.SymbolKindClass)
	assert.Equal(t, "App\\Models\\Post", q)

	q, alt := r.Qualify("helper", types.SymbolKindFunction)
	assert.Equal(t, "App\\Support\\helper", q)
	assert.Empty(t, alt)

	q, _ = r.Qualify("MAX_SIZE", types.SymbolKindConstant)
	assert.Equal(t, "App\\Config\\MAX_SIZE", q)

	// Grouped imports pick up the shared prefix.
	q, _ = r.Qualify("Created", types.SymbolKindClass)
	assert.Equal(t, "App\\Events\\Created", q)
	q, _ = r.Qualify("Removed", types.SymbolKindClass)
	assert.Equal(t, "App\\Events\\Deleted", q)
}

func TestFromTreeGlobal(t *testing.T) {
	src := []byte(`<?php
$x = 1;
`)
	p, err := parser.New()
	require.NoError(t, err)
	defer p.Close()
	tree, err := p.Parse(src)
	require.NoError(t, err)
	defer tree.Close()

	r := FromTree(tree.RootNode(), src)
	assert.Equal(t, "", r.Namespace)

	q, alt := r.Qualify("Foo", types.SymbolKindClass)
	assert.Equal(t, "Foo", q)
	assert.Empty(t, alt)
}
