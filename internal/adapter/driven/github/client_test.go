package github_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/pagesdns/internal/adapter/driven/github"
	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/")
	require.NoError(t, err)

	return client
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGetPagesInfo_Found(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/pages", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, `{
			"html_url": "https://octo.github.io/site/",
			"cname": "docs.example.com",
			"status": "built",
			"source": {"branch": "gh-pages", "path": "/"}
		}`)
	})
	client := newTestClient(t, mux)

	info, err := client.GetPagesInfo(context.Background(), "octo/site")
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "https://octo.github.io/site/", info.HTMLURL)
	assert.Equal(t, "docs.example.com", info.CNAME)
	assert.Equal(t, "built", info.Status)
	assert.Equal(t, "gh-pages", info.SourceBranch)
	assert.Equal(t, "/", info.SourcePath)
}

func TestGetPagesInfo_NotFoundIsAbsent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/pages", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusNotFound, `{"message":"Not Found"}`)
	})
	client := newTestClient(t, mux)

	info, err := client.GetPagesInfo(context.Background(), "octo/site")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetPagesInfo_ServerErrorIsTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/pages", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusBadGateway, `{"message":"bad gateway"}`)
	})
	client := newTestClient(t, mux)

	_, err := client.GetPagesInfo(context.Background(), "octo/site")
	require.Error(t, err)
	assert.True(t, model.IsTransient(err))

	var upstream *model.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "github", upstream.Service)
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
}

func TestGetPagesInfo_ForbiddenIsPermanent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/pages", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusUnprocessableEntity, `{"message":"nope"}`)
	})
	client := newTestClient(t, mux)

	_, err := client.GetPagesInfo(context.Background(), "octo/site")
	require.Error(t, err)
	assert.False(t, model.IsTransient(err))
}

func TestGetPagesInfo_RejectsMalformedRepo(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, err := client.GetPagesInfo(context.Background(), "no-slash")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestGetFileContent_DecodesFileAtRef(t *testing.T) {
	var gotRef string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/contents/CNAME", func(w http.ResponseWriter, r *http.Request) {
		gotRef = r.URL.Query().Get("ref")
		encoded := base64.StdEncoding.EncodeToString([]byte("docs.example.com\n"))
		writeBody(w, http.StatusOK, `{"type":"file","name":"CNAME","path":"CNAME","encoding":"base64","content":"`+encoded+`"}`)
	})
	client := newTestClient(t, mux)

	content, found, err := client.GetFileContent(context.Background(), "octo/site", "CNAME", "gh-pages")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "docs.example.com\n", content)
	assert.Equal(t, "gh-pages", gotRef)
}

func TestGetFileContent_MissingFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/contents/CNAME", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusNotFound, `{"message":"Not Found"}`)
	})
	client := newTestClient(t, mux)

	content, found, err := client.GetFileContent(context.Background(), "octo/site", "CNAME", "main")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, content)
}

func TestGetFileContent_DirectoryIsNotAFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site/contents/CNAME", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, `[{"type":"file","name":"index.md","path":"CNAME/index.md"}]`)
	})
	client := newTestClient(t, mux)

	_, found, err := client.GetFileContent(context.Background(), "octo/site", "CNAME", "main")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetDefaultBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/site", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, `{"full_name":"octo/site","default_branch":"trunk"}`)
	})
	client := newTestClient(t, mux)

	branch, err := client.GetDefaultBranch(context.Background(), "octo/site")
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)
}
