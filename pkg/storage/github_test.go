package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStubBackend wires a GitHub backend to a stub API server.
func newStubBackend(t *testing.T, handler http.Handler) *GitHub {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	baseURL, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	return NewGitHubWithClient(client, "fyang0507", "assistant-data", "agent-workspace")
}

func TestGitHubReadFailuresCollapseToAbsence(t *testing.T) {
	backend := newStubBackend(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	ctx := context.Background()

	exists, err := backend.Exists(ctx, "Reading List/SKILL.md")
	require.NoError(t, err)
	assert.False(t, exists)

	content, err := backend.ReadFile(ctx, "Reading List/SKILL.md")
	require.NoError(t, err)
	assert.Nil(t, content)

	entries, err := backend.ReadDir(ctx, "Reading List")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGitHubReadFile(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("---\nname: x\n---\nBody"))
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyang0507/assistant-data/contents/Reading%20List/SKILL.md", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "agent-workspace", r.URL.Query().Get("ref"))
		fmt.Fprintf(w, `{"type":"file","name":"SKILL.md","sha":"abc123","encoding":"base64","content":%q}`, encoded)
	})

	backend := newStubBackend(t, mux)
	content, err := backend.ReadFile(context.Background(), "/Reading List/SKILL.md")
	require.NoError(t, err)
	assert.Equal(t, "---\nname: x\n---\nBody", string(content))
}

func TestGitHubReadDir(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyang0507/assistant-data/contents/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"type":"dir","name":"Reading List"},{"type":"file","name":"README.md"}]`)
	})

	backend := newStubBackend(t, mux)
	entries, err := backend.ReadDir(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Name: "Reading List", IsDir: true}, entries[0])
	assert.Equal(t, Entry{Name: "README.md", IsDir: false}, entries[1])
}

func TestGitHubWriteFileCreatesBranchAndFile(t *testing.T) {
	var createdRef, createdFile bool

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyang0507/assistant-data/git/ref/heads/agent-workspace", func(w http.ResponseWriter, _ *http.Request) {
		if createdRef {
			fmt.Fprint(w, `{"ref":"refs/heads/agent-workspace","object":{"sha":"base"}}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	mux.HandleFunc("/repos/fyang0507/assistant-data", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"default_branch":"main"}`)
	})
	mux.HandleFunc("/repos/fyang0507/assistant-data/git/ref/heads/main", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ref":"refs/heads/main","object":{"sha":"basesha"}}`)
	})
	mux.HandleFunc("/repos/fyang0507/assistant-data/git/refs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refs/heads/agent-workspace", body.Ref)
		assert.Equal(t, "basesha", body.SHA)
		createdRef = true
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"ref":"refs/heads/agent-workspace","object":{"sha":"basesha"}}`)
	})
	mux.HandleFunc("/repos/fyang0507/assistant-data/contents/Reading%20List/SKILL.md", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
		case http.MethodPut:
			var body struct {
				Branch  string  `json:"branch"`
				SHA     *string `json:"sha"`
				Content string  `json:"content"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "agent-workspace", body.Branch)
			assert.Nil(t, body.SHA, "create must not carry a SHA")
			createdFile = true
			fmt.Fprint(w, `{"content":{"sha":"newsha"}}`)
		}
	})

	backend := newStubBackend(t, mux)
	require.NoError(t, backend.WriteFile(context.Background(), "Reading List/SKILL.md", []byte("hello")))
	assert.True(t, createdRef)
	assert.True(t, createdFile)
}

func TestGitHubWriteFileUpdatesWithSHA(t *testing.T) {
	var gotSHA string

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyang0507/assistant-data/git/ref/heads/agent-workspace", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ref":"refs/heads/agent-workspace","object":{"sha":"tip"}}`)
	})
	mux.HandleFunc("/repos/fyang0507/assistant-data/contents/Reading%20List/schema.yaml", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"type":"file","name":"schema.yaml","sha":"oldsha","encoding":"base64","content":""}`)
		case http.MethodPut:
			var body struct {
				SHA string `json:"sha"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotSHA = body.SHA
			fmt.Fprint(w, `{"content":{"sha":"newsha"}}`)
		}
	})

	backend := newStubBackend(t, mux)
	require.NoError(t, backend.WriteFile(context.Background(), "Reading List/schema.yaml", []byte("name: x")))
	assert.Equal(t, "oldsha", gotSHA, "update must carry the last-read SHA")
}

func TestGitHubRemoveAbsentIsNoop(t *testing.T) {
	backend := newStubBackend(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))

	assert.NoError(t, backend.Remove(context.Background(), "gone/SKILL.md"))
}

func TestGitHubRemoveLookupFailurePropagates(t *testing.T) {
	backend := newStubBackend(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"message":"upstream error"}`)
	}))

	// A transient API failure must not masquerade as a successful delete:
	// commit's draft cleanup relies on Remove reporting it.
	err := backend.Remove(context.Background(), "_drafts/My Skill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to look up")
}

func TestGitHubRemoveDirectoryDeletesEachEntry(t *testing.T) {
	deleted := map[string]bool{}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyang0507/assistant-data/git/ref/heads/agent-workspace", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ref":"refs/heads/agent-workspace","object":{"sha":"tip"}}`)
	})
	mux.HandleFunc("/repos/fyang0507/assistant-data/contents/_drafts/My%20Skill", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"type":"file","name":"SKILL.md"},{"type":"file","name":"notes.md"}]`)
	})
	for _, name := range []string{"SKILL.md", "notes.md"} {
		path := "/repos/fyang0507/assistant-data/contents/_drafts/My%20Skill/" + name
		fileName := name
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				fmt.Fprintf(w, `{"type":"file","name":%q,"sha":"sha-%s","encoding":"base64","content":""}`, fileName, fileName)
			case http.MethodDelete:
				deleted[fileName] = true
				fmt.Fprint(w, `{"commit":{"sha":"c"}}`)
			}
		})
	}

	backend := newStubBackend(t, mux)
	require.NoError(t, backend.Remove(context.Background(), "_drafts/My Skill"))
	assert.True(t, deleted["SKILL.md"])
	assert.True(t, deleted["notes.md"])
}
