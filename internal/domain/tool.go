package domain

import "errors"

// VersionParser extracts a version string from raw version-command output.
// The boolean is false when no version could be found.
type VersionParser func(output string) (string, bool)

// DefaultVersionFlag is passed to a tool when its spec names no flag
const DefaultVersionFlag = "--version"

// UnknownVersion is recorded for a runnable tool whose output could not be parsed
const UnknownVersion = "Unknown"

// ToolSpec is the static description of one required tool
type ToolSpec struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Package      string        `json:"package"`           // package manager identifier, e.g. "yt-dlp", "vlc"
	IsCask       bool          `json:"is_cask"`           // installed with --cask
	Command      string        `json:"command,omitempty"` // executable name when it differs from Package
	VersionFlag  string        `json:"version_flag"`
	ParseVersion VersionParser `json:"-"`
}

// Executable returns the executable name of the tool
func (s ToolSpec) Executable() string {
	if s.Command != "" {
		return s.Command
	}
	return s.Package
}

// Flag returns the version-query flag
func (s ToolSpec) Flag() string {
	if s.VersionFlag != "" {
		return s.VersionFlag
	}
	return DefaultVersionFlag
}

// Version runs the tool's version parser over output. A nil parser yields nothing.
func (s ToolSpec) Version(output string) (string, bool) {
	if s.ParseVersion == nil {
		return "", false
	}
	return s.ParseVersion(output)
}

// ToolStatusKind is a lifecycle state of a tool within one provisioning run
type ToolStatusKind string

const (
	ToolUnknown      ToolStatusKind = "unknown"
	ToolChecking     ToolStatusKind = "checking"
	ToolNotInstalled ToolStatusKind = "not_installed"
	ToolInstalling   ToolStatusKind = "installing"
	ToolInstalled    ToolStatusKind = "installed"
	ToolFailed       ToolStatusKind = "failed"
)

// ToolStatus is a state plus the failure reason when Kind is ToolFailed
type ToolStatus struct {
	Kind   ToolStatusKind `json:"kind"`
	Reason string         `json:"reason,omitempty"`
}

// Failed builds a failed status carrying reason
func Failed(reason string) ToolStatus {
	return ToolStatus{Kind: ToolFailed, Reason: reason}
}

// Status builds a status of the given kind
func Status(kind ToolStatusKind) ToolStatus {
	return ToolStatus{Kind: kind}
}

// IsTerminal reports whether the status ends a run for the tool
func (s ToolStatus) IsTerminal() bool {
	return s.Kind == ToolInstalled || s.Kind == ToolFailed
}

func (s ToolStatus) String() string {
	if s.Kind == ToolFailed && s.Reason != "" {
		return string(s.Kind) + ": " + s.Reason
	}
	return string(s.Kind)
}

// ToolState is the observable per-tool state owned by the provisioner
type ToolState struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Package     string     `json:"package"`
	Status      ToolStatus `json:"status"`
	Version     string     `json:"version,omitempty"`
	Path        string     `json:"path,omitempty"` // executable that answered the version query
	Log         []string   `json:"log,omitempty"`
}

// NewToolState returns the initial state for spec
func NewToolState(spec ToolSpec) ToolState {
	return ToolState{
		Name:        spec.Name,
		Description: spec.Description,
		Package:     spec.Package,
		Status:      Status(ToolUnknown),
	}
}

// Clone returns a deep copy safe to hand to another goroutine
func (t ToolState) Clone() ToolState {
	c := t
	if t.Log != nil {
		c.Log = append([]string(nil), t.Log...)
	}
	return c
}

// Err returns a *ProvisioningFailedError when the tool ended its run failed
func (t ToolState) Err() error {
	if t.Status.Kind != ToolFailed {
		return nil
	}
	return &ProvisioningFailedError{Tool: t.Name, Reason: t.Status.Reason}
}

// PackageManagerStatus describes the package manager for one check
type PackageManagerStatus struct {
	Installed  bool   `json:"installed"`
	Path       string `json:"path,omitempty"`
	Message    string `json:"message"`
	Installing bool   `json:"installing"`
}

// ProvisioningSnapshot is a consistent view of an orchestration run
type ProvisioningSnapshot struct {
	PackageManager PackageManagerStatus `json:"package_manager"`
	Tools          []ToolState          `json:"tools"`
	Running        bool                 `json:"running"`
	Completed      bool                 `json:"completed"`
}

// Tool returns the state for name
func (s ProvisioningSnapshot) Tool(name string) (ToolState, bool) {
	for _, t := range s.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolState{}, false
}

// Err joins the errors of every failed tool, in catalog order
func (s ProvisioningSnapshot) Err() error {
	var errs []error
	for _, t := range s.Tools {
		if err := t.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PackageManager locates the package manager and builds its commands
type PackageManager interface {
	// Locate probes the well-known install paths and returns the first match
	Locate() (string, bool)

	// Prefix returns the install prefix for a located manager executable
	Prefix(path string) string

	// ToolPath returns where the manager links spec's executable
	ToolPath(path string, spec ToolSpec) string

	// InstallCommand builds the command that installs spec
	InstallCommand(path string, spec ToolSpec) Command

	// BootstrapCommand builds the manager's own install one-liner
	BootstrapCommand() Command

	// FailureHint returns advice for a failed install log, or ""
	FailureHint(spec ToolSpec, log []string) string

	// Name is the display name of the manager
	Name() string
}
