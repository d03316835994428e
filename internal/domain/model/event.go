package model

// Webhook event kinds, as sent in the X-GitHub-Event header.
const (
	EventRepository = "repository"
	EventPageBuild  = "page_build"
	EventPages      = "pages"
	EventPing       = "ping"
)

// Webhook actions the service reacts to.
const (
	ActionCreated  = "created"
	ActionEdited   = "edited"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionUndeploy = "undeploy"
)

// EventRepo is the repository object embedded in webhook payloads.
type EventRepo struct {
	FullName string          `json:"full_name"`
	HTMLURL  string          `json:"html_url"`
	Pages    *EventRepoPages `json:"pages,omitempty"`
}

// EventRepoPages is the optional Pages block of a repository payload.
type EventRepoPages struct {
	CustomDomain string `json:"custom_domain"`
}

// EventInstallation identifies the app installation that sent the event.
type EventInstallation struct {
	ID int64 `json:"id"`
}

// EventPagesBlock is the Pages object carried by pages events.
type EventPagesBlock struct {
	CNAME   string `json:"cname"`
	HTMLURL string `json:"html_url"`
}

// RepositoryEvent is the payload of a repository webhook.
type RepositoryEvent struct {
	Action       string             `json:"action"`
	Repository   EventRepo          `json:"repository"`
	Installation *EventInstallation `json:"installation,omitempty"`
}

// PageBuildEvent is the payload of a page_build webhook.
type PageBuildEvent struct {
	Repository   EventRepo          `json:"repository"`
	Installation *EventInstallation `json:"installation,omitempty"`
}

// PagesEvent is the payload of a pages webhook.
type PagesEvent struct {
	Action       string             `json:"action"`
	Pages        *EventPagesBlock   `json:"pages,omitempty"`
	Repository   EventRepo          `json:"repository"`
	Installation *EventInstallation `json:"installation,omitempty"`
}

// InstallationID returns the installation id of an event, or 0.
func InstallationID(inst *EventInstallation) int64 {
	if inst == nil {
		return 0
	}
	return inst.ID
}
