package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRepoName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "org/site", want: "org/site"},
		{name: "dots and dashes", input: "my-org/my.site_v2", want: "my-org/my.site_v2"},
		{name: "trimmed", input: "  org/site  ", want: "org/site"},
		{name: "missing slash", input: "orgsite", wantErr: true},
		{name: "extra segment", input: "org/site/extra", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "space inside", input: "org/si te", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateRepoName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "a.example.com", want: "a.example.com"},
		{name: "single character labels", input: "www.x.io", want: "www.x.io"},
		{name: "single character subdomain", input: "b.example.com", want: "b.example.com"},
		{name: "upper case single label", input: "A.B.CO", want: "a.b.co"},
		{name: "normalized", input: " Docs.Example.COM. ", want: "docs.example.com"},
		{name: "empty means none", input: "", want: ""},
		{name: "single label", input: "localhost", wantErr: true},
		{name: "leading dash", input: "-bad.example.com", wantErr: true},
		{name: "underscore", input: "bad_name.example.com", wantErr: true},
		{name: "trailing dash", input: "bad-.example.com", wantErr: true},
		{name: "empty label", input: "a..example.com", wantErr: true},
		{name: "label too long", input: strings.Repeat("a", 64) + ".example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDomain(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatePagesURL(t *testing.T) {
	got, err := ValidatePagesURL("https://org.github.io/site/")
	require.NoError(t, err)
	assert.Equal(t, "https://org.github.io/site/", got)

	got, err = ValidatePagesURL("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ValidatePagesURL("not a url")
	assert.Error(t, err)

	_, err = ValidatePagesURL("ftp://example.com")
	assert.Error(t, err)
}

func TestSanitize_TooLong(t *testing.T) {
	_, err := Sanitize("field", strings.Repeat("a", MaxInputLength+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum length")
}

func TestValidateMapping(t *testing.T) {
	m := DomainMapping{RepoName: " org/site ", PagesURL: "https://org.github.io/site/", CustomDomain: "A.Example.com"}
	require.NoError(t, ValidateMapping(&m))
	assert.Equal(t, "org/site", m.RepoName)
	assert.Equal(t, "a.example.com", m.CustomDomain)

	bad := DomainMapping{RepoName: "org/site", CustomDomain: "nope"}
	assert.Error(t, ValidateMapping(&bad))
}
