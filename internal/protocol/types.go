package protocol

import "encoding/json"

// Method names understood by the lint server dialect.
const (
	MethodInitialize             = "initialize"
	MethodInitialized            = "initialized"
	MethodShutdown               = "shutdown"
	MethodExit                   = "exit"
	MethodDidOpen                = "textDocument/didOpen"
	MethodDidClose               = "textDocument/didClose"
	MethodDidChangeConfiguration = "workspace/didChangeConfiguration"
	MethodConfiguration          = "workspace/configuration"
	MethodNoConfig               = "lint/noConfig"
	MethodNoLibrary              = "lint/noLibrary"
	MethodOpenDoc                = "lint/openDoc"
	MethodProbeFailed            = "lint/probeFailed"
	MethodStatus                 = "lint/status"
)

// DocumentURI identifies a document. Usually a file:// URI; untitled: and
// notebook-cell: schemes appear for unsaved buffers and notebook cells.
type DocumentURI string

// TextDocumentIdentifier identifies a text document by URI.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// TextDocumentItem transfers a document from the client to the server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// DidOpenTextDocumentParams is the payload of textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams is the payload of textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidChangeConfigurationParams pokes the server after local settings change.
// Settings is left null; the server re-pulls via workspace/configuration.
type DidChangeConfigurationParams struct {
	Settings any `json:"settings"`
}

// WorkspaceFolder describes one root folder of the workspace.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// ConfigurationParams is the payload of a workspace/configuration request
// sent by the server. The response is an array of the same length, one
// settings object (or null) per item, in item order.
type ConfigurationParams struct {
	Items []ConfigurationItem `json:"items"`
}

// ConfigurationItem scopes one configuration lookup.
type ConfigurationItem struct {
	ScopeURI DocumentURI `json:"scopeUri,omitempty"`
	Section  string      `json:"section,omitempty"`
}

// --- Lifecycle ---

// InitializeParams are the parameters of the initialize handshake.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// ClientCapabilities advertises what this client supports.
type ClientCapabilities struct {
	Workspace *WorkspaceClientCapabilities `json:"workspace,omitempty"`
}

// WorkspaceClientCapabilities covers the workspace-level capabilities the
// lint server cares about: configuration pull and change notification.
type WorkspaceClientCapabilities struct {
	Configuration          bool `json:"configuration,omitempty"`
	DidChangeConfiguration bool `json:"didChangeConfiguration,omitempty"`
	WorkspaceFolders       bool `json:"workspaceFolders,omitempty"`
}

// InitializeResult is the server's half of the handshake.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerCapabilities is kept opaque apart from the sync field; the client
// only needs the handshake to succeed.
type ServerCapabilities struct {
	TextDocumentSync json.RawMessage `json:"textDocumentSync,omitempty"`
}

// ServerInfo names the server binary that answered initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializedParams is the (empty) payload of the initialized notification.
type InitializedParams struct{}

// --- Lint dialect ---

// NoConfigParams reports that no lint configuration file was found for a
// document's directory tree.
type NoConfigParams struct {
	Message  string                 `json:"message,omitempty"`
	Document TextDocumentIdentifier `json:"document"`
}

// NoLibraryParams reports that the lint library could not be loaded for the
// given resource.
type NoLibraryParams struct {
	Source TextDocumentIdentifier `json:"source"`
}

// OpenDocParams asks the client to open reference documentation.
type OpenDocParams struct {
	URL string `json:"url"`
}

// ProbeFailedParams reports that a speculatively validated document turned
// out not to be lintable.
type ProbeFailedParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DocumentStatus is the per-document health state carried by lint/status.
type DocumentStatus int

// Document health states.
const (
	StatusOK    DocumentStatus = 1
	StatusWarn  DocumentStatus = 2
	StatusError DocumentStatus = 3
)

// String returns the status name.
func (s DocumentStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarn:
		return "warn"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusParams is the payload of a lint/status notification.
type StatusParams struct {
	URI   DocumentURI    `json:"uri"`
	State DocumentStatus `json:"state"`
}

// --- Resolved configuration ---

// RuleCustomization overrides the reported severity of one lint rule.
// Rule may use * wildcards; Severity is one of downgrade, upgrade, info,
// warn, error, off, default.
type RuleCustomization struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
}

// WorkingDirectory tells the server which directory to run the lint library
// from for a document. Either Directory or Mode is set; NoCwdChange keeps
// the server's process working directory untouched. The wire name "!cwd"
// is historical and kept for compatibility with existing servers.
type WorkingDirectory struct {
	Directory   string `json:"directory,omitempty"`
	NoCwdChange bool   `json:"!cwd,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

// Working directory modes used when no directory or pattern rule matched.
const (
	ModeAuto     = "auto"
	ModeLocation = "location"
)

// CodeActionSettings covers the non-save code action toggles.
type CodeActionSettings struct {
	DisableRuleComment OnOffSetting `json:"disableRuleComment"`
	ShowDocumentation  OnOffSetting `json:"showDocumentation"`
}

// OnOffSetting is a nested enable toggle.
type OnOffSetting struct {
	Enable bool `json:"enable"`
}

// CodeActionsOnSave controls fix-all-on-save behavior.
type CodeActionsOnSave struct {
	Enable bool     `json:"enable"`
	Mode   string   `json:"mode,omitempty"`
	Rules  []string `json:"rules,omitempty"`
}

// Code-action-on-save modes.
const (
	CodeActionModeAll      = "all"
	CodeActionModeProblems = "problems"
)

// ResolvedSettings is one entry of a workspace/configuration response: the
// per-document settings bag the server lints with.
type ResolvedSettings struct {
	Validate            string              `json:"validate"`
	PackageManager      string              `json:"packageManager,omitempty"`
	NodePath            string              `json:"nodePath,omitempty"`
	Run                 string              `json:"run,omitempty"`
	Quiet               bool                `json:"quiet"`
	Format              bool                `json:"format"`
	CodeAction          CodeActionSettings  `json:"codeAction"`
	CodeActionOnSave    CodeActionsOnSave   `json:"codeActionOnSave"`
	RulesCustomizations []RuleCustomization `json:"rulesCustomizations"`
	WorkingDirectory    *WorkingDirectory   `json:"workingDirectory,omitempty"`
	WorkspaceFolder     *WorkspaceFolder    `json:"workspaceFolder,omitempty"`
}
