package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git6keen/Levelset-sub001/internal/tools"
	"github.com/git6keen/Levelset-sub001/internal/tui"
)

func TestParseToolArgs(t *testing.T) {
	args, err := parseToolArgs([]string{"title=Mop kitchen", "xp=25", "items=[\"a\",\"b\"]", "note=\"quoted\""}, `{"priority":4,"xp":1}`)
	require.NoError(t, err)

	assert.Equal(t, "Mop kitchen", args["title"])
	assert.Equal(t, 25.0, args["xp"], "pairs override --json")
	assert.Equal(t, 4.0, args["priority"])
	assert.Equal(t, []any{"a", "b"}, args["items"])
	assert.Equal(t, `"quoted"`, args["note"], "JSON strings stay verbatim")

	_, err = parseToolArgs([]string{"novalue"}, "")
	assert.Error(t, err)
	_, err = parseToolArgs(nil, "{bad")
	assert.Error(t, err)
}

func TestConfirmPreviews(t *testing.T) {
	var executed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		executed = append(executed, req.Name)
		_ = json.NewEncoder(w).Encode(tools.Success(map[string]any{"text": "printed " + req.Name}))
	}))
	defer srv.Close()

	old := apiAddr
	apiAddr = srv.URL
	defer func() { apiAddr = old }()

	previews := []tui.Preview{
		{Name: "tasks.create", Args: map[string]any{"title": "Mop"}},
		{Name: "tasks.delete", Args: map[string]any{"id": "t-1"}},
		{Name: "checklists.print", Args: map[string]any{"checklist_id": "c-1"}},
	}
	var out bytes.Buffer
	require.NoError(t, confirmPreviews(context.Background(), previews, strings.NewReader("y\nn\nyes\n"), &out))

	assert.Equal(t, []string{"tasks.create", "checklists.print"}, executed)
	assert.Contains(t, out.String(), "skipped")
	assert.Contains(t, out.String(), "printed checklists.print")
}

func TestToolError(t *testing.T) {
	err := toolError(&tools.Error{Code: tools.CodeMissingArgument, Message: "missing required arguments", Missing: []string{"title"}})
	assert.Equal(t, "missing_argument: missing required arguments [title]", err.Error())
	assert.Equal(t, "tool failed", toolError(nil).Error())
}
