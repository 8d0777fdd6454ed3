package mcp

// ServerType distinguishes how a preset's command is obtained.
type ServerType string

const (
	ServerTypeNPX        ServerType = "npx"
	ServerTypeExecutable ServerType = "executable"
	ServerTypeHTTP       ServerType = "http"
)

// AuthType describes the credential flow a preset's server requires.
type AuthType string

const (
	AuthAPIKey AuthType = "api_key"
	AuthOAuth  AuthType = "oauth"
	AuthNone   AuthType = "none"
)

// Preset is a catalog entry describing a popular MCP server a user can add
// by supplying only its required environment variables. Grounded on
// MCP_SERVER_PRESETS; field set trimmed to what the Go server manager
// actually consumes (icon/setup_url/instructions are UI-only concerns with
// no SPEC_FULL.md consumer, so they are dropped rather than carried dead).
type Preset struct {
	Name        string
	DisplayName string
	Description string
	Package     string
	Command     string
	Args        []string
	EnvVars     []string
	Category    string
	Type        ServerType
	Auth        AuthType
}

// Presets is the built-in catalog of well-known MCP servers.
var Presets = map[string]Preset{
	"slack": {
		Name: "slack", DisplayName: "Slack",
		Description: "Send messages, read channels, manage Slack workspace",
		Package:     "@modelcontextprotocol/server-slack",
		Command:     "npx", Args: []string{"-y", "@modelcontextprotocol/server-slack"},
		EnvVars: []string{"SLACK_BOT_TOKEN", "SLACK_TEAM_ID"},
		Category: "communication", Type: ServerTypeNPX, Auth: AuthAPIKey,
	},
	"google-drive": {
		Name: "google-drive", DisplayName: "Google Drive",
		Description: "Read and search files in Google Drive",
		Package:     "@modelcontextprotocol/server-gdrive",
		Command:     "npx", Args: []string{"-y", "@modelcontextprotocol/server-gdrive"},
		EnvVars: []string{"GDRIVE_CREDENTIALS_PATH"},
		Category: "storage", Type: ServerTypeNPX, Auth: AuthOAuth,
	},
	"filesystem": {
		Name: "filesystem", DisplayName: "Filesystem",
		Description: "Read and write local files (specify allowed directories)",
		Package:     "@modelcontextprotocol/server-filesystem",
		Command:     "npx", Args: []string{"-y", "@modelcontextprotocol/server-filesystem"},
		EnvVars: []string{"ALLOWED_DIRECTORIES"},
		Category: "storage", Type: ServerTypeNPX, Auth: AuthNone,
	},
	"postgres": {
		Name: "postgres", DisplayName: "PostgreSQL",
		Description: "Read-only access to PostgreSQL databases",
		Package:     "@modelcontextprotocol/server-postgres",
		Command:     "npx", Args: []string{"-y", "@modelcontextprotocol/server-postgres"},
		EnvVars: []string{"POSTGRES_CONNECTION_STRING"},
		Category: "database", Type: ServerTypeNPX, Auth: AuthAPIKey,
	},
	"notion": {
		Name: "notion", DisplayName: "Notion",
		Description: "Read and write Notion pages and databases",
		Package:     "notion-mcp-server",
		Command:     "npx", Args: []string{"-y", "notion-mcp-server"},
		EnvVars: []string{"NOTION_API_KEY"},
		Category: "productivity", Type: ServerTypeNPX, Auth: AuthAPIKey,
	},
	"github": {
		Name: "github", DisplayName: "GitHub",
		Description: "Manage repositories, issues, and pull requests",
		Package:     "@modelcontextprotocol/server-github",
		Command:     "npx", Args: []string{"-y", "@modelcontextprotocol/server-github"},
		EnvVars: []string{"GITHUB_PERSONAL_ACCESS_TOKEN"},
		Category: "development", Type: ServerTypeNPX, Auth: AuthAPIKey,
	},
	"brave-search": {
		Name: "brave-search", DisplayName: "Brave Search",
		Description: "Search the web using Brave Search API",
		Package:     "@modelcontextprotocol/server-brave-search",
		Command:     "npx", Args: []string{"-y", "@modelcontextprotocol/server-brave-search"},
		EnvVars: []string{"BRAVE_API_KEY"},
		Category: "search", Type: ServerTypeNPX, Auth: AuthAPIKey,
	},
	"airtable": {
		Name: "airtable", DisplayName: "Airtable",
		Description: "Read and write Airtable bases",
		Package:     "airtable-mcp-server",
		Command:     "npx", Args: []string{"-y", "airtable-mcp-server"},
		EnvVars: []string{"AIRTABLE_API_KEY"},
		Category: "business", Type: ServerTypeNPX, Auth: AuthAPIKey,
	},
	"gmail": {
		Name: "gmail", DisplayName: "Gmail",
		Description: "Search emails, create drafts, manage Gmail (requires a user-supplied executable)",
		Package:     "github.com/kevin-turing/auto-gmail",
		EnvVars:     []string{"GMAIL_CLIENT_ID", "GMAIL_CLIENT_SECRET", "OPENAI_API_KEY"},
		Category:    "communication", Type: ServerTypeExecutable, Auth: AuthOAuth,
	},
	"google-calendar": {
		Name: "google-calendar", DisplayName: "Google Calendar",
		Description: "Manage calendar events and schedules (requires setup)",
		Package:     "mcp-server-google-calendar",
		EnvVars:     []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET"},
		Category:    "productivity", Type: ServerTypeExecutable, Auth: AuthOAuth,
	},
}

// GetPreset returns the named preset, if any.
func GetPreset(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}
