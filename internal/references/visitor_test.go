package references

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/phpintel/internal/types"
)

func analyzeSrc(t *testing.T, src string, q SymbolQuery) *DocumentReferences {
	t.Helper()
	doc, err := Analyze("test.php", []byte(src), q)
	require.NoError(t, err)
	return doc
}

// refAt returns the reference covering the nth occurrence of needle.
func refAt(t *testing.T, doc *DocumentReferences, src, needle string, occurrence int) *Reference {
	t.Helper()
	offset := -1
	for i := 0; i <= occurrence; i++ {
		idx := strings.Index(src[offset+1:], needle)
		require.GreaterOrEqual(t, idx, 0, "needle %q occurrence %d not in source", needle, occurrence)
		offset = offset + 1 + idx
	}
	ref := doc.At(offset)
	require.NotNil(t, ref, "no reference at %q occurrence %d (offset %d)", needle, occurrence, offset)
	return ref
}

func TestVisitorSortedNonOverlapping(t *testing.T) {
	src := `<?php
namespace App;

use App\Models\User;

function handle(User $u, array $rows) {
    $name = $u->getName();
    foreach ($rows as $row) {
        $u->setName(trim($row));
    }
    if ($name instanceof User) {
        $name->save();
    }
    return new User($name, CONST_A);
}
`
	doc := analyzeSrc(t, src, nil)
	refs := doc.All()
	require.NotEmpty(t, refs)

	for i := 1; i < len(refs); i++ {
		assert.GreaterOrEqual(t, refs[i].Range.Start.Offset, refs[i-1].Range.End.Offset,
			"refs %d (%s) and %d (%s) overlap or are unordered",
			i-1, refs[i-1].Name, i, refs[i].Name)
	}

	// At agrees with a linear scan for every covered offset.
	for _, r := range refs {
		assert.Same(t, r, doc.At(r.Range.Start.Offset))
		assert.Same(t, r, doc.At(r.Range.End.Offset-1))
	}
	assert.Nil(t, doc.At(0))
	assert.Nil(t, doc.At(len(src)+10))
}

func TestVisitorDeterministic(t *testing.T) {
	src := `<?php
$a = 1;
if ($a) { $b = "x"; } else { $b = 2; }
$c = function () use ($a) { return $a + 1; };
`
	first := analyzeSrc(t, src, nil).All()
	second := analyzeSrc(t, src, nil).All()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Kind, second[i].Kind)
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, first[i].Range, second[i].Range)
		assert.Equal(t, first[i].Type, second[i].Type)
	}
}

func TestVisitorAssignmentTypes(t *testing.T) {
	src := `<?php
$a = 1;
$b = "hello";
$c = $a;
$d = 1.5;
$e = true;
$f = [1, 2];
`
	doc := analyzeSrc(t, src, nil)

	assert.Equal(t, "int", refAt(t, doc, src, "$a", 0).Type)
	assert.Equal(t, "string", refAt(t, doc, src, "$b", 0).Type)
	assert.Equal(t, "int", refAt(t, doc, src, "$c", 0).Type)
	assert.Equal(t, "float", refAt(t, doc, src, "$d", 0).Type)
	assert.Equal(t, "bool", refAt(t, doc, src, "$e", 0).Type)
	assert.Equal(t, "array", refAt(t, doc, src, "$f", 0).Type)

	// The read of $a on the right-hand side carries its flow type too.
	assert.Equal(t, "int", refAt(t, doc, src, "$a", 1).Type)
}

func TestVisitorBranchJoin(t *testing.T) {
	src := `<?php
$x = 0;
if ($cond) {
    $x = "yes";
} else {
    $x = 1;
}
$after = $x;
`
	doc := analyzeSrc(t, src, nil)

	// Inside each arm the narrow binding holds.
	assert.Equal(t, "string", refAt(t, doc, src, `$x = "yes"`, 0).Type)

	// After the join the read sees the union with the pre-branch binding.
	after := refAt(t, doc, src, "$x;", 0)
	assert.ElementsMatch(t, []string{"int", "string"}, strings.Split(after.Type, "|"))
}

func TestVisitorNonExhaustiveBranchRetained(t *testing.T) {
	src := `<?php
if ($cond) {
    $y = "maybe";
}
$z = $y;
`
	doc := analyzeSrc(t, src, nil)
	assert.Equal(t, "string", refAt(t, doc, src, "$y;", 0).Type)
}

func TestVisitorForeachElementType(t *testing.T) {
	src := `<?php
function f(User ...$us) {
    foreach ($us as $u) {
        $u;
    }
}
`
	doc := analyzeSrc(t, src, nil)

	assert.Equal(t, "User[]", refAt(t, doc, src, "$us as", 0).Type)
	assert.Equal(t, "User", refAt(t, doc, src, "$u)", 0).Type)
	assert.Equal(t, "User", refAt(t, doc, src, "$u;", 0).Type)
}

func TestVisitorForeachKeyValue(t *testing.T) {
	src := `<?php
function f(Item ...$items) {
    foreach ($items as $k => $v) {
        $k;
        $v;
    }
}
`
	doc := analyzeSrc(t, src, nil)

	assert.Equal(t, "", refAt(t, doc, src, "$k;", 0).Type)
	assert.Equal(t, "Item", refAt(t, doc, src, "$v;", 0).Type)
}

func TestVisitorInstanceofNarrowing(t *testing.T) {
	src := `<?php
function f($x) {
    if ($x instanceof Foo) {
        $x;
    }
}
`
	doc := analyzeSrc(t, src, nil)

	tested := refAt(t, doc, src, "$x instanceof", 0)
	assert.Equal(t, "Foo", tested.Type)
	assert.Equal(t, "Foo", refAt(t, doc, src, "$x;", 0).Type)

	// The designator itself is a class reference.
	designator := refAt(t, doc, src, "Foo", 0)
	assert.Equal(t, types.SymbolKindClass, designator.Kind)
	assert.Equal(t, "Foo", designator.Name)
}

func TestVisitorInstanceofDynamicDesignator(t *testing.T) {
	src := `<?php
function f($x, $y) {
    if ($x instanceof $y) {
        $x;
    }
}
`
	doc := analyzeSrc(t, src, nil)

	// An unresolvable designator leaves the tested variable unknown; its
	// variable name must not leak in as a type.
	assert.Equal(t, "", refAt(t, doc, src, "$x instanceof", 0).Type)
	assert.Equal(t, "", refAt(t, doc, src, "$x;", 0).Type)

	designator := refAt(t, doc, src, "$y)", 1)
	assert.Equal(t, types.SymbolKindVariable, designator.Kind)
}

func TestVisitorNamedArgumentLabels(t *testing.T) {
	src := `<?php
page(limit: 5, offset: MAX_ROWS);
`
	doc := analyzeSrc(t, src, nil)

	for _, r := range doc.All() {
		assert.NotEqual(t, "limit", r.Name)
		assert.NotEqual(t, "offset", r.Name)
	}

	assert.Equal(t, types.SymbolKindFunction, refAt(t, doc, src, "page", 0).Kind)

	// The argument value still reduces as a constant fetch.
	val := refAt(t, doc, src, "MAX_ROWS", 0)
	assert.Equal(t, types.SymbolKindConstant, val.Kind)
	assert.Equal(t, "MAX_ROWS", val.Name)
}

func TestVisitorClassBodyIsNotAVariableScope(t *testing.T) {
	src := `<?php
$conn = new Connection();
class Repo {
    public $db = $conn;
    public function all() {
        $conn;
    }
}
`
	doc := analyzeSrc(t, src, nil)

	// Expressions directly inside the class body see the enclosing scope.
	assert.Equal(t, "Connection", refAt(t, doc, src, "$conn;", 0).Type)
	// Method bodies stay isolated.
	assert.Equal(t, "", refAt(t, doc, src, "$conn;", 1).Type)
}

func TestVisitorCatchBindsUnion(t *testing.T) {
	src := `<?php
try {
    risky();
} catch (FooError | BarError $e) {
    $e;
}
`
	doc := analyzeSrc(t, src, nil)
	assert.Equal(t, "FooError|BarError", refAt(t, doc, src, "$e;", 0).Type)
}

func TestVisitorClosureCapture(t *testing.T) {
	src := `<?php
$a = 1;
$f = function () use ($a) {
    $g = $a;
};
$h = function () {
    $b = $a;
};
$i = fn() => $a;
`
	doc := analyzeSrc(t, src, nil)

	// use-clause capture carries the type by value.
	assert.Equal(t, "int", refAt(t, doc, src, "$a", 1).Type)
	assert.Equal(t, "int", refAt(t, doc, src, "$g", 0).Type)

	// A closure without a use clause sees nothing from outside.
	assert.Equal(t, "", refAt(t, doc, src, "$a", 3).Type)
	assert.Equal(t, "", refAt(t, doc, src, "$b", 0).Type)

	// Arrow functions capture the whole environment.
	assert.Equal(t, "int", refAt(t, doc, src, "$a", 4).Type)

	assert.Equal(t, "Closure", refAt(t, doc, src, "$f", 0).Type)
	assert.Equal(t, "Closure", refAt(t, doc, src, "$i", 0).Type)
}

func TestVisitorScopeIsolation(t *testing.T) {
	src := `<?php
$outer = "o";
function f() {
    $outer;
    $inner = 1;
}
$inner;
`
	doc := analyzeSrc(t, src, nil)
	assert.Equal(t, "", refAt(t, doc, src, "$outer;", 0).Type)
	assert.Equal(t, "", refAt(t, doc, src, "$inner;", 0).Type)
}

func TestVisitorNamespaceAndUse(t *testing.T) {
	src := `<?php
namespace App;

use App\Models\User;
use function App\Support\helper;

$u = new User();
$n = strlen("x");
$h = helper();
`
	doc := analyzeSrc(t, src, nil)

	imported := refAt(t, doc, src, "App\\Models\\User", 0)
	assert.Equal(t, types.SymbolKindClass, imported.Kind)
	assert.Equal(t, "App\\Models\\User", imported.Name)

	// The alias resolves at use sites.
	used := refAt(t, doc, src, "User()", 0)
	assert.Equal(t, "App\\Models\\User", used.Name)
	assert.Equal(t, "App\\Models\\User", refAt(t, doc, src, "$u", 0).Type)

	// Unqualified functions get the global fallback name.
	call := refAt(t, doc, src, "strlen", 0)
	assert.Equal(t, types.SymbolKindFunction, call.Kind)
	assert.Equal(t, "App\\strlen", call.Name)
	assert.Equal(t, "strlen", call.AltName)

	aliased := refAt(t, doc, src, "helper()", 0)
	assert.Equal(t, "App\\Support\\helper", aliased.Name)
	assert.Equal(t, "", aliased.AltName)
}

func TestVisitorMemberAccess(t *testing.T) {
	q := newFakeQuery()
	q.addMember("App\\User", &types.Symbol{Kind: types.SymbolKindMethod, Name: "getName", Type: "string"})
	q.addMember("App\\User", &types.Symbol{Kind: types.SymbolKindProperty, Name: "email", Type: "string"})

	src := `<?php
namespace App;

$u = new User();
$name = $u->getName();
$mail = $u->email;
`
	doc := analyzeSrc(t, src, q)

	method := refAt(t, doc, src, "getName", 0)
	assert.Equal(t, types.SymbolKindMethod, method.Kind)
	assert.Equal(t, "App\\User", method.Scope)

	prop := refAt(t, doc, src, "email", 0)
	assert.Equal(t, types.SymbolKindProperty, prop.Kind)
	assert.Equal(t, "App\\User", prop.Scope)

	// The call's return type flows into the assignment.
	assert.Equal(t, "string", refAt(t, doc, src, "$name", 0).Type)
	assert.Equal(t, "string", refAt(t, doc, src, "$mail", 0).Type)
}

func TestVisitorStaticAccess(t *testing.T) {
	src := `<?php
$a = User::create();
$b = User::$instance;
$c = User::STATUS;
`
	doc := analyzeSrc(t, src, nil)

	method := refAt(t, doc, src, "create", 0)
	assert.Equal(t, types.SymbolKindMethod, method.Kind)
	assert.Equal(t, "User", method.Scope)

	prop := refAt(t, doc, src, "$instance", 0)
	assert.Equal(t, types.SymbolKindProperty, prop.Kind)
	assert.Equal(t, "$instance", prop.Name)
	assert.Equal(t, "User", prop.Scope)

	konst := refAt(t, doc, src, "STATUS", 0)
	assert.Equal(t, types.SymbolKindClassConstant, konst.Kind)
	assert.Equal(t, "User", konst.Scope)

	// Each receiver is also a class reference.
	assert.Equal(t, types.SymbolKindClass, refAt(t, doc, src, "User::create", 0).Kind)
}

func TestVisitorThisAndRelativeScope(t *testing.T) {
	src := `<?php
namespace App;

class Repo extends Base {
    public function fetch() {
        $this->query();
        self::helper();
        parent::helper();
        static::helper();
    }
}
`
	doc := analyzeSrc(t, src, nil)

	this := refAt(t, doc, src, "$this", 0)
	assert.Equal(t, "App\\Repo", this.Type)

	assert.Equal(t, "App\\Repo", refAt(t, doc, src, "query", 0).Scope)
	assert.Equal(t, "App\\Repo", refAt(t, doc, src, "self", 0).Name)
	assert.Equal(t, "App\\Base", refAt(t, doc, src, "parent::", 0).Name)
	assert.Equal(t, "App\\Repo", refAt(t, doc, src, "static::", 0).Name)

	// The extends clause resolves as a class reference.
	base := refAt(t, doc, src, "Base {", 0)
	assert.Equal(t, types.SymbolKindClass, base.Kind)
	assert.Equal(t, "App\\Base", base.Name)
}

func TestVisitorChainedCalls(t *testing.T) {
	q := newFakeQuery()
	q.addMember("Query", &types.Symbol{Kind: types.SymbolKindMethod, Name: "where", Type: "Query"})
	q.addMember("Query", &types.Symbol{Kind: types.SymbolKindMethod, Name: "first", Type: "Row"})

	src := `<?php
function f(Query $q) {
    $row = $q->where("id")->first();
}
`
	doc := analyzeSrc(t, src, q)
	assert.Equal(t, "Query", refAt(t, doc, src, "where", 0).Scope)
	assert.Equal(t, "Query", refAt(t, doc, src, "first", 0).Scope)
	assert.Equal(t, "Row", refAt(t, doc, src, "$row", 0).Type)
}

func TestVisitorListDestructuring(t *testing.T) {
	src := `<?php
function f(User ...$pair) {
    [$a, $b] = $pair;
    $a;
}
`
	doc := analyzeSrc(t, src, nil)
	assert.Equal(t, "User", refAt(t, doc, src, "$a,", 0).Type)
	assert.Equal(t, "User", refAt(t, doc, src, "$a;", 0).Type)
}

func TestVisitorHaltOffsetPrefix(t *testing.T) {
	src := `<?php
$x = 1;
$x = "two";
$x = 1.5;
$tail = $x;
`
	full, err := Analyze("test.php", []byte(src), nil)
	require.NoError(t, err)

	halt := strings.Index(src, `"two"`)
	partial, err := AnalyzeAt("test.php", []byte(src), nil, halt)
	require.NoError(t, err)

	require.Less(t, partial.Len(), full.Len())
	for i, r := range partial.All() {
		fullRef := full.All()[i]
		assert.Equal(t, fullRef.Name, r.Name)
		assert.Equal(t, fullRef.Range, r.Range)
		assert.Equal(t, fullRef.Type, r.Type)
	}

	// The binding at the halt point is visible.
	second := refAt(t, partial, src, `$x = "two"`, 0)
	assert.Equal(t, "string", second.Type)
}

func TestVisitorMalformedSourceStillYields(t *testing.T) {
	src := `<?php
$a = 1;
function broken( {
$b = $a;
`
	doc := analyzeSrc(t, src, nil)
	assert.NotNil(t, refAt(t, doc, src, "$a", 0))
	for i, refs := 1, doc.All(); i < len(refs); i++ {
		assert.GreaterOrEqual(t, refs[i].Range.Start.Offset, refs[i-1].Range.End.Offset)
	}
}

func TestVisitorEncapsedStringInterpolation(t *testing.T) {
	src := `<?php
$name = "world";
$msg = "hello $name";
`
	doc := analyzeSrc(t, src, nil)
	assert.Equal(t, "string", refAt(t, doc, src, "$name\"", 0).Type)
	assert.Equal(t, "string", refAt(t, doc, src, "$msg", 0).Type)
}
