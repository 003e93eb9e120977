package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/openvibe-core/internal/actuator"
	"github.com/nerrad567/openvibe-core/internal/channel/ble"
	"github.com/nerrad567/openvibe-core/internal/channel/localws"
	"github.com/nerrad567/openvibe-core/internal/channel/remotews"
	"github.com/nerrad567/openvibe-core/internal/command"
	"github.com/nerrad567/openvibe-core/internal/device"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/logging"
	"github.com/nerrad567/openvibe-core/internal/netattach"
	"github.com/nerrad567/openvibe-core/internal/settings"
	"github.com/nerrad567/openvibe-core/internal/status"
	"github.com/nerrad567/openvibe-core/internal/transport"
)

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("agent: missing dependency")

// Deps are the collaborators an Agent is built from. Radio, Motor,
// Indicator and Mirrors are optional.
type Deps struct {
	Config   *config.Config
	Identity device.Identity
	Settings *settings.Settings
	Link     netattach.Link
	Radio    ble.Radio

	Motor     actuator.Motor
	Indicator actuator.Indicator
	Mirrors   []status.Mirror

	// Inbox receives events from every channel. New creates one sized by
	// Config.Loop.InboxSize when nil. Pass one in to share it with
	// command sources created before the agent.
	Inbox *transport.Inbox

	Logger *logging.Logger

	// NewLocal and NewRemote replace the websocket channels. Tests use them.
	NewLocal  transport.LocalFactory
	NewRemote transport.RemoteFactory
}

// Agent owns the device state and runs every component from a single
// goroutine, one Tick at a time.
type Agent struct {
	cfg      *config.Config
	identity device.Identity
	settings *settings.Settings
	logger   *logging.Logger

	state       *device.State
	inbox       *transport.Inbox
	coordinator *transport.Coordinator
	attach      *netattach.Controller
	reporter    *status.Reporter
	dispatcher  *command.Dispatcher
	driver      *actuator.Driver

	ctx          context.Context
	lastPeriodic time.Time
	lastDropped  uint64
}

// New wires the components. Nothing is started until Start or Run.
func New(ctx context.Context, deps Deps) (*Agent, error) {
	if deps.Config == nil || deps.Settings == nil || deps.Link == nil {
		return nil, fmt.Errorf("%w: config, settings and link are required", ErrMissingDependency)
	}
	cfg := deps.Config

	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	inbox := deps.Inbox
	if inbox == nil {
		inbox = transport.NewInbox(cfg.Loop.InboxSize)
	}

	a := &Agent{
		cfg:      cfg,
		identity: deps.Identity,
		settings: deps.Settings,
		logger:   logger,
		state:    device.NewState(),
		inbox:    inbox,
		ctx:      ctx,
	}

	var peripheral transport.Channel
	if deps.Radio != nil {
		name, err := deps.Settings.DeviceName(ctx)
		if err != nil {
			logger.Warn("reading device name, using default", "error", err)
			name = settings.DefaultDeviceName
		}
		advertised := device.AdvertisedName(name, deps.Identity.MAC)
		peripheral = ble.New(deps.Radio, advertised, inbox, logger)
	}

	newLocal := deps.NewLocal
	if newLocal == nil {
		newLocal = a.newLocalChannel
	}
	newRemote := deps.NewRemote
	if newRemote == nil {
		newRemote = a.newRemoteChannel
	}

	a.coordinator = transport.NewCoordinator(transport.Config{
		State:         a.state,
		Inbox:         inbox,
		Peripheral:    peripheral,
		NewLocal:      newLocal,
		NewRemote:     newRemote,
		DeviceID:      deps.Identity.DeviceID,
		RegisterPath:  cfg.Remote.RegisterPath,
		RetryInterval: cfg.Remote.RetryInterval,
		MaxRetries:    cfg.Remote.MaxRetries,
	})
	a.coordinator.SetLogger(logger.With("component", "transport"))

	a.reporter = status.NewReporter(a.state, deps.Identity, a.coordinator)
	a.reporter.SetLogger(logger.With("component", "status"))
	for _, m := range deps.Mirrors {
		a.reporter.AddMirror(m)
	}

	a.coordinator.SetAnnouncer(a.reporter.Announce)
	a.coordinator.SetOnLinkUp(func(device.TransportMode) {
		a.reporter.Request()
	})

	a.attach = netattach.NewController(ctx, deps.Link, deps.Settings, a.state, cfg.Network.AttachTimeout)
	a.attach.SetLogger(logger.With("component", "netattach"))
	a.attach.SetListener(attachListener{a})

	a.dispatcher = command.NewDispatcher(a.state, deps.Settings, a.attach, a.coordinator, a.reporter)
	a.dispatcher.SetLogger(logger.With("component", "command"))

	a.driver = actuator.NewDriver(deps.Motor, deps.Indicator)
	a.driver.SetLogger(logger.With("component", "actuator"))

	return a, nil
}

func (a *Agent) newLocalChannel(gen uint64) transport.Channel {
	return localws.New(localws.Options{
		Config:     a.cfg.Local,
		Inbox:      a.inbox,
		Generation: gen,
		Status:     a.reporter.Last,
		Logger:     a.logger,
	})
}

func (a *Agent) newRemoteChannel(target string, gen uint64) transport.Channel {
	return remotews.New(remotews.Options{
		Target:         target,
		Inbox:          a.inbox,
		Generation:     gen,
		PingInterval:   a.cfg.Local.PingIntervalDuration(),
		PongTimeout:    a.cfg.Local.PongTimeoutDuration(),
		MaxMessageSize: int64(a.cfg.Local.MaxMessageSize),
		Logger:         a.logger,
	})
}

// attachListener forwards attach events to the coordinator and queues a
// status push so clients learn the new address.
type attachListener struct {
	a *Agent
}

func (l attachListener) OnNetworkAttached() {
	l.a.coordinator.OnNetworkAttached()
	l.a.reporter.Request()
}

func (l attachListener) OnNetworkDetached() {
	l.a.coordinator.OnNetworkDetached()
	l.a.reporter.Request()
}

// Start restores the persisted transport, brings up the peripheral channel
// and requests an attach when credentials are stored.
func (a *Agent) Start(ctx context.Context) error {
	a.ctx = ctx
	a.restore(ctx)

	if err := a.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("starting peripheral channel: %w", err)
	}

	has, err := a.settings.HasWiFiCredentials(ctx)
	if err != nil {
		a.logger.Warn("checking stored credentials", "error", err)
	}
	if has {
		a.attach.RequestAttach()
	}

	a.logger.Info("agent started",
		"device_id", a.identity.DeviceID,
		"transport", a.state.Transport.String(),
		"credentials", has,
	)
	return nil
}

func (a *Agent) restore(ctx context.Context) {
	idx, err := a.settings.LastTransport(ctx)
	if err != nil {
		a.logger.Warn("reading last transport", "error", err)
	}
	mode, err := device.TransportModeFromIndex(idx)
	if err != nil {
		a.logger.Warn("stored transport invalid, using peripheral", "error", err)
	}

	var endpoint string
	if mode == device.ModeRemote {
		endpoint, err = a.settings.RemoteServer(ctx)
		if err != nil {
			a.logger.Warn("reading remote server", "error", err)
		}
		if endpoint == "" {
			a.logger.Warn("remote transport stored without server, using peripheral")
			mode = device.ModePeripheral
		}
	}

	a.coordinator.Restore(mode, endpoint)
}

// Tick runs one pass of the device loop.
func (a *Agent) Tick(now time.Time) {
	a.attach.Tick(now)
	a.coordinator.Tick(now)

	for _, raw := range a.coordinator.TakeCommands() {
		// The dispatcher logs rejected commands.
		_ = a.dispatcher.Handle(a.ctx, raw)
	}

	if interval := a.cfg.Loop.StatusInterval; interval > 0 && now.Sub(a.lastPeriodic) >= interval {
		a.lastPeriodic = now
		a.reporter.Request()
	}
	a.reporter.Flush()

	a.driver.Apply(a.state)

	if dropped := a.inbox.Dropped(); dropped != a.lastDropped {
		a.logger.Warn("inbox full, events dropped", "dropped_total", dropped)
		a.lastDropped = dropped
	}
}

// Run starts the agent and ticks until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Close()

	ticker := time.NewTicker(a.cfg.Loop.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping")
			return nil
		case now := <-ticker.C:
			a.Tick(now)
		}
	}
}

// Close tears down every channel and parks the outputs.
func (a *Agent) Close() {
	a.coordinator.Close()
	if err := a.driver.Close(); err != nil {
		a.logger.Warn("closing actuator", "error", err)
	}
}

// State returns the device state. Only read it from the tick goroutine.
func (a *Agent) State() *device.State { return a.state }

// Inbox returns the event queue shared by every channel.
func (a *Agent) Inbox() *transport.Inbox { return a.inbox }

// Reporter returns the status reporter.
func (a *Agent) Reporter() *status.Reporter { return a.reporter }

// Coordinator returns the transport coordinator.
func (a *Agent) Coordinator() *transport.Coordinator { return a.coordinator }

// Attach returns the network attach controller.
func (a *Agent) Attach() *netattach.Controller { return a.attach }
