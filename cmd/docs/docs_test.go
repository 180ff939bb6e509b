package docs

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

type schema struct {
	Type       string            `json:"type"`
	Required   []string          `json:"required"`
	Properties map[string]schema `json:"properties"`
}

type document struct {
	BasePath    string                                `json:"basePath"`
	Paths       map[string]map[string]json.RawMessage `json:"paths"`
	Definitions map[string]schema                     `json:"definitions"`
}

func readDocument(t *testing.T) (string, document) {
	t.Helper()
	raw, err := swag.ReadDoc()
	require.NoError(t, err)

	var doc document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return raw, doc
}

func TestDocument_RefsResolve(t *testing.T) {
	raw, doc := readDocument(t)
	assert.Equal(t, "/api/v1", doc.BasePath)

	refs := regexp.MustCompile(`"\$ref":\s*"#/definitions/([^"]+)"`).FindAllStringSubmatch(raw, -1)
	require.NotEmpty(t, refs)
	for _, m := range refs {
		assert.Contains(t, doc.Definitions, m[1])
	}
}

func TestDocument_Definitions(t *testing.T) {
	_, doc := readDocument(t)

	create := doc.Definitions["expense.CreateExpenseRequest"]
	assert.Equal(t, "object", create.Type)
	assert.ElementsMatch(t, []string{"description", "group_id", "split_type"}, create.Required)
	assert.Equal(t, "string", create.Properties["amount"].Type)
	assert.Contains(t, create.Properties, "paid_by_pending_email")

	plan := doc.Definitions["settlement.TransactionResponse"]
	assert.Equal(t, "string", plan.Properties["amount"].Type)

	for _, route := range []string{
		"/expenses",
		"/settlements/plans",
		"/settlements/group/{groupId}/calculate",
		"/notifications/read-all",
	} {
		assert.Contains(t, doc.Paths, route)
	}
}
