// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/oapi-codegen/oapi-codegen/v2/pkg/codegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type access int

const (
	accessPublic access = iota
	accessViewer
	accessAdmin
)

// operationAccess is the authorization policy per documented operation,
// keyed by the Go-style operation name.
var operationAccess = map[string]access{
	"GetHealth":          accessPublic,
	"GetReadiness":       accessPublic,
	"GetMetrics":         accessPublic,
	"GetOpenapiYaml":     accessPublic,
	"GetOpenapiJson":     accessPublic,
	"CreateSession":      accessViewer,
	"ListSessions":       accessViewer,
	"GetSession":         accessViewer,
	"DeleteSession":      accessViewer,
	"ApplyIntent":        accessViewer,
	"ReportElementEvent": accessViewer,
	"SetReference":       accessViewer,
	"ObserveVisibility":  accessViewer,
	"AttachElement":      accessViewer,
	"PutBlob":            accessViewer,
	"GetBlob":            accessViewer,
	"DeleteBlob":         accessViewer,
	"ResolveMedia":       accessViewer,
	"PutMedia":           accessAdmin,
	"DeleteMedia":        accessAdmin,
	"SetViewerAuth":      accessViewer,
}

var pathParam = regexp.MustCompile(`\{[^}]+\}`)

func loadDoc(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)
	return doc
}

type documentedOp struct {
	method string
	path   string
	op     *openapi3.Operation
}

func documentedOps(doc *openapi3.T) []documentedOp {
	var ops []documentedOp
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			ops = append(ops, documentedOp{method: strings.ToUpper(method), path: path, op: op})
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].path+ops[i].method < ops[j].path+ops[j].method
	})
	return ops
}

func TestOpenAPIOperationsAreTaggedAndNamed(t *testing.T) {
	doc := loadDoc(t)
	known := map[string]bool{}
	for _, tag := range doc.Tags {
		known[tag.Name] = true
	}
	for _, o := range documentedOps(doc) {
		require.NotEmpty(t, o.op.OperationID, "%s %s", o.method, o.path)
		require.Len(t, o.op.Tags, 1, "%s %s", o.method, o.path)
		assert.True(t, known[o.op.Tags[0]], "%s %s uses undeclared tag %q", o.method, o.path, o.op.Tags[0])
	}
}

// Every mounted route is documented and every documented operation is
// mounted.
func TestRouterParity(t *testing.T) {
	doc := loadDoc(t)
	env := newTestEnv(t, nil)

	routes, ok := env.handler.(chi.Routes)
	require.True(t, ok, "handler must be a chi router")

	var mounted []string
	require.NoError(t, chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if len(route) > 1 {
			route = strings.TrimSuffix(route, "/")
		}
		mounted = append(mounted, method+" "+route)
		return nil
	}))

	var documented []string
	for _, o := range documentedOps(doc) {
		documented = append(documented, o.method+" "+o.path)
	}
	sort.Strings(mounted)
	sort.Strings(documented)
	if diff := cmp.Diff(documented, mounted); diff != "" {
		t.Fatalf("router and openapi.yaml disagree (-documented +mounted):\n%s", diff)
	}
}

func TestAuthorizationMatrix(t *testing.T) {
	doc := loadDoc(t)
	env := newTestEnv(t, nil)

	seen := map[string]bool{}
	for _, o := range documentedOps(doc) {
		name := codegen.ToCamelCase(o.op.OperationID)
		seen[name] = true
		policy, ok := operationAccess[name]
		require.True(t, ok, "no access policy for %s", name)

		path := pathParam.ReplaceAllString(o.path, "x")
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, o.method, path, "", nil)
			switch policy {
			case accessPublic:
				assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
			case accessViewer, accessAdmin:
				requireProblem(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
			}
			if policy == accessAdmin {
				rec = env.do(t, o.method, path, aliceToken, nil)
				requireProblem(t, rec, http.StatusForbidden, "FORBIDDEN")
			}
		})
	}
	for name := range operationAccess {
		assert.True(t, seen[name], "policy for undocumented operation %s", name)
	}
}

func TestServesOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/openapi.yaml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(openAPISpec), rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/api/v1/sessions/{id}/intents")
}
