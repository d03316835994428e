package model

// PagesInfo is the live GitHub Pages configuration of a repository.
type PagesInfo struct {
	HTMLURL      string
	CNAME        string
	Status       string
	SourceBranch string
	SourcePath   string
}
