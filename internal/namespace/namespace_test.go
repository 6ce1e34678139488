package namespace_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklens/doccached/internal/namespace"
)

func TestResolve_ReadableTemplate(t *testing.T) {
	got := namespace.Resolve("acme", "proj1", namespace.KindDocuments)
	assert.Equal(t, "doc_acme_proj1_documents", got)
}

func TestResolve_SanitizesComponents(t *testing.T) {
	tests := []struct {
		name     string
		tenantID string
		scopeID  string
		kind     namespace.Kind
		want     string
	}{
		{
			name:     "uppercase and spaces",
			tenantID: "Acme Corp",
			scopeID:  "Project One",
			kind:     namespace.KindDocuments,
			want:     "doc_acme_corp_project_one_documents",
		},
		{
			name:     "special characters stripped",
			tenantID: "acme.io/eu",
			scopeID:  "p#1",
			kind:     namespace.KindDocuments,
			want:     "doc_acme_io_eu_p_1_documents",
		},
		{
			name:     "empty scope keeps its slot",
			tenantID: "acme",
			scopeID:  "",
			kind:     namespace.KindDocuments,
			want:     "doc_acme__documents",
		},
		{
			name:     "hyphens preserved",
			tenantID: "acme-eu",
			scopeID:  "proj-1",
			kind:     namespace.KindLegacy,
			want:     "doc_acme-eu_proj-1_project_docs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, namespace.Resolve(tt.tenantID, tt.scopeID, tt.kind))
		})
	}
}

// TestResolve_EmptyComponentsStayPositional pins the slot layout of the
// readable template: a component that sanitizes away leaves its underscore
// slot behind, so identifier material cannot shift between the tenant and
// scope positions and collide across different inputs.
func TestResolve_EmptyComponentsStayPositional(t *testing.T) {
	// Tenant strips to nothing in the first pair, scope is empty in the
	// second; without positional slots both would read doc_a_documents.
	strippedTenant := namespace.Resolve("本", "/a", namespace.KindDocuments)
	emptyScope := namespace.Resolve("!a", "", namespace.KindDocuments)

	require.True(t, namespace.Valid(strippedTenant))
	require.True(t, namespace.Valid(emptyScope))
	assert.NotEqual(t, strippedTenant, emptyScope)

	assert.Equal(t, "doc__a_documents", strippedTenant)
	assert.Equal(t, "doc_a__documents", emptyScope)
}

func TestResolve_NeverInvalid(t *testing.T) {
	inputs := []struct{ tenant, scope string }{
		{"", ""},
		{"!!!", "###"},
		{"   ", "\t\n"},
		{strings.Repeat("x", 500), strings.Repeat("y", 500)},
		{"日本語テナント", "プロジェクト"},
		{"-_-", "_-_"},
	}

	for _, in := range inputs {
		got := namespace.Resolve(in.tenant, in.scope, namespace.KindDocuments)
		assert.True(t, namespace.Valid(got), "Resolve(%q, %q) produced invalid namespace %q", in.tenant, in.scope, got)
	}
}

func TestResolve_LongInputsFallBackToDigest(t *testing.T) {
	long := strings.Repeat("tenant", 30)
	got := namespace.Resolve(long, "scope", namespace.KindDocuments)

	require.LessOrEqual(t, len(got), namespace.MaxLength)
	require.GreaterOrEqual(t, len(got), namespace.MinLength)
	// Hashed names keep the kind suffix for debuggability.
	assert.True(t, strings.HasSuffix(got, "_documents"), "expected kind suffix, got %q", got)
}

func TestResolve_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		a := namespace.Resolve("tenant-1", "scope-1", namespace.KindDocuments)
		b := namespace.Resolve("tenant-1", "scope-1", namespace.KindDocuments)
		assert.Equal(t, a, b)
	}
}

func TestResolve_DistinctKindsDistinctNamespaces(t *testing.T) {
	docs := namespace.Resolve("acme", "p1", namespace.KindDocuments)
	legacy := namespace.Resolve("acme", "p1", namespace.KindLegacy)
	assert.NotEqual(t, docs, legacy)
}

// TestResolve_CollisionResistance fuzzes random identifier pairs, including
// pathologically long and non-ASCII ones, and verifies distinct inputs keep
// distinct namespaces. Short ids draw from a sanitization-stable alphabet
// (sanitization maps distinct raw forms like "a b" and "a.b" to the same
// readable name by design); long and unicode ids exercise the digest tier,
// where distinctness must hold regardless of charset.
func TestResolve_CollisionResistance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	short := []rune("abcdefghijklmnopqrstuvwxyz0123456789")
	wide := []rune("abcdefghijklmnopqrstuvwxyz0123456789-_./#日本語テキスト ")

	randID := func(alphabet []rune, minLen, maxLen int) string {
		n := minLen + rng.Intn(maxLen-minLen+1)
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		return b.String()
	}

	seen := make(map[string][2]string)
	check := func(tenant, scope string) {
		ns := namespace.Resolve(tenant, scope, namespace.KindDocuments)
		require.True(t, namespace.Valid(ns), "invalid namespace %q for (%q, %q)", ns, tenant, scope)

		if prev, ok := seen[ns]; ok {
			require.Equal(t, [2]string{tenant, scope}, prev,
				"collision: (%q,%q) and (%q,%q) both map to %q", tenant, scope, prev[0], prev[1], ns)
			return
		}
		seen[ns] = [2]string{tenant, scope}
	}

	for i := 0; i < 3000; i++ {
		check(randID(short, 1, 20), randID(short, 1, 20))
	}
	for i := 0; i < 3000; i++ {
		check(randID(wide, 64, 300), randID(wide, 64, 300))
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"minimum length", "abc", true},
		{"too short", "ab", false},
		{"too long", strings.Repeat("a", 64), false},
		{"max length", strings.Repeat("a", 63), true},
		{"leading underscore", "_abc", false},
		{"trailing hyphen", "abc-", false},
		{"interior punctuation", "ab.c", false},
		{"mixed case allowed", "Abc123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, namespace.Valid(tt.in))
		})
	}
}
