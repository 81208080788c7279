package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"go.uber.org/zap"
)

// Failure reasons recorded on a tool's terminal state
const (
	ReasonInstallFailed    = "Installation failed. Check log for details."
	ReasonStillNotFound    = "Installation command ran, but tool is still not found."
	ReasonManagerMissing   = "%s is not installed."
	ReasonRunCancelled     = "Provisioning was cancelled."
	installLogFirstLine    = "Starting installation..."
	installLogStderrPrefix = "ERROR: "
)

// ErrProvisioningInProgress is returned by Run while another run is active
var ErrProvisioningInProgress = errors.New("provisioning already in progress")

// ProvisioningNotifier receives terminal provisioning events
type ProvisioningNotifier interface {
	NotifyToolInstalled(tool, version string)
	NotifyToolFailed(tool, reason string)
	NotifyProvisioningFinished(installed, failed int)
}

// Provisioner checks, installs and verifies the tool catalog through a
// package manager. Runs are single-flight and process tools one at a time
// so two installs never contend for the package manager's lock.
type Provisioner struct {
	catalog  []domain.ToolSpec
	pm       domain.PackageManager
	runner   domain.ProcessRunner
	notifier ProvisioningNotifier
	logger   *zap.Logger
	lookPath func(string) (string, error)

	mu          sync.Mutex
	manager     domain.PackageManagerStatus
	tools       []domain.ToolState
	running     bool
	completed   bool
	done        chan struct{}
	subscribers map[int]chan domain.ProvisioningSnapshot
	nextSubID   int
}

// NewProvisioner creates a provisioner for catalog. notifier may be nil.
func NewProvisioner(
	catalog []domain.ToolSpec,
	pm domain.PackageManager,
	runner domain.ProcessRunner,
	notifier ProvisioningNotifier,
	logger *zap.Logger,
) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provisioner{
		catalog:     append([]domain.ToolSpec(nil), catalog...),
		pm:          pm,
		runner:      runner,
		notifier:    notifier,
		logger:      logger,
		lookPath:    exec.LookPath,
		subscribers: make(map[int]chan domain.ProvisioningSnapshot),
	}
	p.resetLocked()
	p.manager.Message = ""
	return p
}

// Catalog returns the tool specs in declaration order
func (p *Provisioner) Catalog() []domain.ToolSpec {
	return append([]domain.ToolSpec(nil), p.catalog...)
}

// BeginCheck starts a run in the background. It returns false without doing
// anything when a run is already in flight.
func (p *Provisioner) BeginCheck(ctx context.Context) bool {
	if !p.begin() {
		return false
	}
	go func() {
		defer p.finish()
		p.run(ctx)
	}()
	return true
}

// Run performs a full run and blocks until every tool is terminal
func (p *Provisioner) Run(ctx context.Context) error {
	if !p.begin() {
		return ErrProvisioningInProgress
	}
	defer p.finish()
	p.run(ctx)
	return nil
}

// Wait blocks until the current run, if any, has finished
func (p *Provisioner) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	running := p.running
	p.mu.Unlock()

	if !running || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a consistent deep copy of the current state
func (p *Provisioner) Snapshot() domain.ProvisioningSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe returns a channel receiving a full snapshot after every state
// change, starting with the current one. A slow reader only ever sees the
// latest snapshot. The returned func unsubscribes and closes the channel.
func (p *Provisioner) Subscribe() (<-chan domain.ProvisioningSnapshot, func()) {
	ch := make(chan domain.ProvisioningSnapshot, 1)

	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = ch
	ch <- p.snapshotLocked()
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subscribers, id)
			close(ch)
		})
	}
}

// ToolPath returns the executable path recorded for an installed tool
func (p *Provisioner) ToolPath(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tools {
		if t.Name == name && t.Status.Kind == domain.ToolInstalled && t.Path != "" {
			return t.Path, true
		}
	}
	return "", false
}

func (p *Provisioner) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.resetLocked()
	p.running = true
	p.completed = false
	p.done = make(chan struct{})
	p.publishLocked()
	return true
}

func (p *Provisioner) finish() {
	p.mu.Lock()
	p.running = false
	p.completed = true
	installed, failed := 0, 0
	for _, t := range p.tools {
		switch t.Status.Kind {
		case domain.ToolInstalled:
			installed++
		case domain.ToolFailed:
			failed++
		}
	}
	close(p.done)
	p.publishLocked()
	p.mu.Unlock()

	p.logger.Info("Provisioning finished", zap.Int("installed", installed), zap.Int("failed", failed))
	if p.notifier != nil {
		p.notifier.NotifyProvisioningFinished(installed, failed)
	}
}

// resetLocked gives every tool a fresh unknown state
func (p *Provisioner) resetLocked() {
	p.manager = domain.PackageManagerStatus{Message: fmt.Sprintf("Checking for %s...", p.pm.Name())}
	p.tools = make([]domain.ToolState, len(p.catalog))
	for i, spec := range p.catalog {
		p.tools[i] = domain.NewToolState(spec)
	}
}

func (p *Provisioner) run(ctx context.Context) {
	name := p.pm.Name()
	p.logger.Info("Provisioning started", zap.Int("tools", len(p.catalog)))

	brewPath, found := p.pm.Locate()
	if found {
		p.managerFound(brewPath)
	} else {
		p.updateManager(func(s *domain.PackageManagerStatus) {
			s.Message = fmt.Sprintf("%s not found in standard locations.", name)
		})
		brewPath, found = p.bootstrap(ctx)
	}

	for _, spec := range p.catalog {
		if ctx.Err() != nil {
			p.setFailed(spec, ReasonRunCancelled)
			continue
		}
		if found {
			p.provision(ctx, brewPath, spec)
		} else {
			p.verifyOnPath(ctx, spec)
		}
	}
}

func (p *Provisioner) managerFound(path string) {
	p.updateManager(func(s *domain.PackageManagerStatus) {
		s.Installed = true
		s.Path = path
		s.Message = fmt.Sprintf("%s is installed at: %s", p.pm.Name(), path)
	})
	p.logger.Info("Package manager found", zap.String("manager", p.pm.Name()), zap.String("path", path))
}

// bootstrap runs the package manager's own installer and probes again
func (p *Provisioner) bootstrap(ctx context.Context) (string, bool) {
	name := p.pm.Name()
	p.updateManager(func(s *domain.PackageManagerStatus) {
		s.Installing = true
		s.Message = fmt.Sprintf("Installing %s. This may take several minutes and might ask for your password...", name)
	})
	p.logger.Info("Bootstrapping package manager", zap.String("manager", name))

	err := p.runner.RunStreaming(ctx, p.pm.BootstrapCommand(),
		func(line string) {
			p.updateManager(func(s *domain.PackageManagerStatus) {
				s.Message = fmt.Sprintf("%s install: %s", name, line)
			})
		},
		func(line string) {
			p.updateManager(func(s *domain.PackageManagerStatus) {
				s.Message = fmt.Sprintf("%s install (error): %s", name, line)
			})
		},
	)

	p.updateManager(func(s *domain.PackageManagerStatus) {
		s.Installing = false
		if err != nil {
			s.Message = fmt.Sprintf("%s installation failed: %v", name, err)
		} else {
			s.Message = fmt.Sprintf("%s installation completed successfully!", name)
		}
	})
	if err != nil {
		p.logger.Error("Package manager bootstrap failed", zap.String("manager", name), zap.Error(err))
	}

	path, ok := p.pm.Locate()
	if ok {
		p.managerFound(path)
	}
	return path, ok
}

// provision checks one tool and installs it when it does not answer
func (p *Provisioner) provision(ctx context.Context, brewPath string, spec domain.ToolSpec) {
	toolPath := p.pm.ToolPath(brewPath, spec)
	if p.verify(ctx, spec, toolPath) {
		return
	}

	p.update(spec.Name, func(t *domain.ToolState) {
		t.Status = domain.Status(domain.ToolInstalling)
		t.Log = []string{installLogFirstLine}
	})
	p.logger.Info("Installing tool", zap.String("tool", spec.Name), zap.String("package", spec.Package), zap.Bool("cask", spec.IsCask))

	appendLog := func(line string) {
		p.update(spec.Name, func(t *domain.ToolState) {
			t.Log = append(t.Log, line)
		})
	}
	err := p.runner.RunStreaming(ctx, p.pm.InstallCommand(brewPath, spec),
		appendLog,
		func(line string) { appendLog(installLogStderrPrefix + line) },
	)
	if err != nil {
		reason := ReasonInstallFailed
		if hint := p.pm.FailureHint(spec, p.toolLog(spec.Name)); hint != "" {
			reason += " " + hint
		}
		p.logger.Error("Tool install failed", zap.String("tool", spec.Name), zap.Error(err))
		p.setFailed(spec, reason)
		return
	}

	if p.verify(ctx, spec, toolPath) {
		state, _ := p.Snapshot().Tool(spec.Name)
		if p.notifier != nil {
			p.notifier.NotifyToolInstalled(spec.Name, state.Version)
		}
		return
	}
	p.setFailed(spec, ReasonStillNotFound)
}

// verifyOnPath reports tools already present when the package manager is
// unavailable; nothing can be installed in that case
func (p *Provisioner) verifyOnPath(ctx context.Context, spec domain.ToolSpec) {
	p.update(spec.Name, func(t *domain.ToolState) {
		t.Status = domain.Status(domain.ToolChecking)
	})
	path, err := p.lookPath(spec.Executable())
	if err == nil && p.verify(ctx, spec, path) {
		return
	}
	p.setFailed(spec, fmt.Sprintf(ReasonManagerMissing, p.pm.Name()))
}

// verify runs `<path> <flag>`. A runnable binary counts as installed even
// when its version cannot be parsed.
func (p *Provisioner) verify(ctx context.Context, spec domain.ToolSpec, path string) bool {
	p.update(spec.Name, func(t *domain.ToolState) {
		t.Status = domain.Status(domain.ToolChecking)
	})

	result, err := p.runner.RunBuffered(ctx, domain.ExecCommand(path, spec.Flag()))
	if err != nil {
		p.update(spec.Name, func(t *domain.ToolState) {
			t.Status = domain.Status(domain.ToolNotInstalled)
			t.Version = ""
			t.Path = ""
		})
		p.logger.Debug("Tool not installed", zap.String("tool", spec.Name), zap.String("path", path), zap.Error(err))
		return false
	}

	output := result.Stdout
	if output == "" {
		output = result.Stderr
	}
	version, ok := spec.Version(output)
	if !ok {
		version = domain.UnknownVersion
	}
	p.update(spec.Name, func(t *domain.ToolState) {
		t.Status = domain.Status(domain.ToolInstalled)
		t.Version = version
		t.Path = path
	})
	p.logger.Info("Tool installed", zap.String("tool", spec.Name), zap.String("version", version), zap.String("path", path))
	return true
}

func (p *Provisioner) setFailed(spec domain.ToolSpec, reason string) {
	p.update(spec.Name, func(t *domain.ToolState) {
		t.Status = domain.Failed(reason)
		t.Version = ""
		t.Path = ""
	})
	p.logger.Warn("Tool failed", zap.String("tool", spec.Name), zap.String("reason", reason))
	if p.notifier != nil {
		p.notifier.NotifyToolFailed(spec.Name, reason)
	}
}

func (p *Provisioner) toolLog(name string) []string {
	state, _ := p.Snapshot().Tool(name)
	return state.Log
}

func (p *Provisioner) update(name string, fn func(*domain.ToolState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.tools {
		if p.tools[i].Name == name {
			fn(&p.tools[i])
			break
		}
	}
	p.publishLocked()
}

func (p *Provisioner) updateManager(fn func(*domain.PackageManagerStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.manager)
	p.publishLocked()
}

func (p *Provisioner) snapshotLocked() domain.ProvisioningSnapshot {
	tools := make([]domain.ToolState, len(p.tools))
	for i, t := range p.tools {
		tools[i] = t.Clone()
	}
	return domain.ProvisioningSnapshot{
		PackageManager: p.manager,
		Tools:          tools,
		Running:        p.running,
		Completed:      p.completed,
	}
}

// publishLocked hands the latest snapshot to every subscriber without blocking
func (p *Provisioner) publishLocked() {
	if len(p.subscribers) == 0 {
		return
	}
	snap := p.snapshotLocked()
	for _, ch := range p.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
