package provision

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/havenlighting/provision-core/internal/ble"
	"github.com/havenlighting/provision-core/internal/filter"
	"github.com/havenlighting/provision-core/internal/identity"
)

// Defaults applied when Options leaves a knob unset.
const (
	defaultProximity = 3 * time.Second
	defaultCooldown  = 5 * time.Second
	defaultRSSIMin   = -60
	defaultRSSIMax   = -1
)

// Logger is the logging surface the engine consumes.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// CloudAPI is the Haven cloud capability the engine needs.
// Satisfied by *cloud.Client.
type CloudAPI interface {
	GetAPIKey(ctx context.Context, mac string, controllerTypeID int, bearer string) (string, error)
	AddDeviceToLocation(ctx context.Context, mac string, locationID int, bearer string) error
}

// Telemetry receives fire-and-forget metrics. Optional.
type Telemetry interface {
	WriteAttempt(res Result)
	WriteSighting(name string, rssi int)
}

// Options are the engine's standing defaults, normally sourced from the
// daemon config. Per-run Params override individual fields.
type Options struct {
	WiFiSSID     string
	WiFiPassword string
	AnnounceURL  string
	BearerToken  string

	LocationMode filter.LocationMode
	LocationID   string

	// RSSI window; candidates outside it are ignored.
	RSSIMin int
	RSSIMax int

	// Proximity is how long a candidate must stay inside the RSSI window
	// before it is selected.
	Proximity time.Duration

	// Cooldown is the pause between attempt cycles.
	Cooldown time.Duration

	ConnectTimeout time.Duration
	IOTimeout      time.Duration
}

// Params carries per-run overrides. Zero fields fall back to Options.
type Params struct {
	BearerToken  string
	LocationMode filter.LocationMode
	LocationID   string
	WiFiSSID     string
	WiFiPassword string
	AnnounceURL  string
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Central   ble.Central
	Cloud     CloudAPI
	Ledger    *Ledger
	Attempts  AttemptStore // optional
	Telemetry Telemetry    // optional
	Logger    Logger
	Options   Options
}

// Orchestrator runs the provisioning engine. Create with New; a zero
// Orchestrator is not usable.
type Orchestrator struct {
	central   ble.Central
	cloud     CloudAPI
	ledger    *Ledger
	attempts  AttemptStore
	telemetry Telemetry
	logger    Logger
	opts      Options

	events *Broadcaster
	logs   *LogBuffer

	running atomic.Bool

	status   Status
	statusMu sync.RWMutex

	// sessionMu is the single-session gate shared by both driving modes.
	sessionMu sync.Mutex

	scanMu     sync.Mutex
	scanCancel context.CancelFunc

	wg sync.WaitGroup
}

// New creates an orchestrator.
//
// Parameters:
//   - deps: Collaborators and standing options; Central, Cloud, Ledger and
//     Logger are required, the rest optional
//
// Returns:
//   - *Orchestrator: Engine in the Idle state
//   - error: If a required dependency is missing
func New(deps Deps) (*Orchestrator, error) {
	if deps.Central == nil {
		return nil, fmt.Errorf("ble central is required")
	}
	if deps.Cloud == nil {
		return nil, fmt.Errorf("cloud client is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := deps.Options
	if opts.RSSIMin == 0 && opts.RSSIMax == 0 {
		opts.RSSIMin, opts.RSSIMax = defaultRSSIMin, defaultRSSIMax
	}
	if opts.Proximity <= 0 {
		opts.Proximity = defaultProximity
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}

	return &Orchestrator{
		central:   deps.Central,
		cloud:     deps.Cloud,
		ledger:    deps.Ledger,
		attempts:  deps.Attempts,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		opts:      opts,
		events:    NewBroadcaster(),
		logs:      NewLogBuffer(DefaultLogCapacity),
		status:    StatusIdle,
	}, nil
}

// Subscribe registers an event stream consumer.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.events.Subscribe()
}

// Logs exposes the bounded log ring for snapshot and clear.
func (o *Orchestrator) Logs() *LogBuffer {
	return o.logs
}

// Ledger exposes the provisioned-device ledger.
func (o *Orchestrator) Ledger() *Ledger {
	return o.ledger
}

// Status returns the current engine status.
func (o *Orchestrator) Status() Status {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

// IsRunning reports whether the autonomous loop is active.
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// StartLoop begins the autonomous scan-provision-pause loop in a
// background goroutine. ctx bounds the loop's lifetime; cancelling it
// (daemon shutdown) also aborts an in-flight attempt.
//
// A second start while the loop or a single-shot attempt is active is a
// logged no-op returning ErrBusy.
func (o *Orchestrator) StartLoop(ctx context.Context, params Params) error {
	// The session gate doubles as the start gate: failing to take it means
	// a single-shot attempt still owns the radio. Taking it before setting
	// running closes the window where scanning could begin mid-session.
	if !o.sessionMu.TryLock() {
		o.logf(levelWarn, "start ignored: a provisioning session is in progress")
		return ErrBusy
	}
	if !o.running.CompareAndSwap(false, true) {
		o.sessionMu.Unlock()
		o.logf(levelWarn, "start ignored: loop already running")
		return ErrBusy
	}
	o.sessionMu.Unlock()

	p := o.merge(params)
	o.wg.Add(1)
	go o.runLoop(ctx, p)

	o.logf(levelInfo, "provisioning loop started")
	return nil
}

// StopLoop requests a cooperative stop: an active scan is cancelled
// immediately, an in-flight provisioning attempt finishes or fails on its
// own. Idempotent.
func (o *Orchestrator) StopLoop() error {
	if !o.running.CompareAndSwap(true, false) {
		o.logf(levelInfo, "stop requested but loop is not running")
		o.setStatus(StatusIdle)
		return nil
	}

	o.cancelScan()
	o.logf(levelInfo, "stop requested; finishing in-flight attempt if any")
	return nil
}

// Wait blocks until the loop goroutine has exited. Used during shutdown
// after cancelling the loop context.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// ProvisionDevice performs a single attempt for a caller-supplied
// candidate. The caller owns scanning and must have stopped it before the
// call; proximity gating is also the caller's responsibility.
//
// Returns ErrBusy while the loop or another attempt is active.
func (o *Orchestrator) ProvisionDevice(ctx context.Context, cand ble.Candidate, params Params) (Result, error) {
	if cand.Addr == "" {
		return Result{}, ErrNoDevice
	}
	if !o.sessionMu.TryLock() {
		o.logf(levelWarn, "provisioning already in progress; request ignored")
		return Result{}, ErrBusy
	}
	defer o.sessionMu.Unlock()

	// Checked under the gate so a loop started concurrently cannot scan
	// while this session connects.
	if o.running.Load() {
		o.logf(levelWarn, "single-shot request ignored: loop active")
		return Result{}, ErrBusy
	}
	return o.attemptLocked(ctx, cand, o.merge(params))
}

// merge fills zero Params fields from the standing Options.
func (o *Orchestrator) merge(p Params) Params {
	if p.BearerToken == "" {
		p.BearerToken = o.opts.BearerToken
	}
	if p.LocationMode == "" {
		p.LocationMode = o.opts.LocationMode
	}
	if p.LocationID == "" {
		p.LocationID = o.opts.LocationID
	}
	if p.WiFiSSID == "" {
		p.WiFiSSID = o.opts.WiFiSSID
	}
	if p.WiFiPassword == "" {
		p.WiFiPassword = o.opts.WiFiPassword
	}
	if p.AnnounceURL == "" {
		p.AnnounceURL = o.opts.AnnounceURL
	}
	return p
}

// runLoop is the autonomous cycle: scan, provision, pause, repeat.
// Attempt failures never terminate the loop.
func (o *Orchestrator) runLoop(ctx context.Context, p Params) {
	defer o.wg.Done()
	defer func() {
		o.running.Store(false)
		o.setStatus(StatusIdle)
	}()

	for o.running.Load() {
		if ctx.Err() != nil {
			return
		}

		o.setStatus(StatusScanning)
		cand, ok := o.scanForTarget(ctx)
		if !ok {
			if ctx.Err() != nil || !o.running.Load() {
				return
			}
			// Scan failure; back off before retrying.
			if !o.pause(ctx) {
				return
			}
			continue
		}

		o.setStatus(StatusDeviceFound)
		o.logf(levelInfo, fmt.Sprintf("device found: %s (%s, %d dBm)", cand.Name, cand.Addr, cand.RSSI))

		if _, err := o.attempt(ctx, cand, p); err != nil {
			// ErrBusy cannot happen here; log anything else and move on.
			o.logf(levelWarn, fmt.Sprintf("attempt not started: %v", err))
		}

		if !o.pause(ctx) {
			return
		}
	}
}

// pause waits out the cooldown. Returns false when the loop context ends.
func (o *Orchestrator) pause(ctx context.Context) bool {
	select {
	case <-time.After(o.opts.Cooldown):
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) cancelScan() {
	o.scanMu.Lock()
	defer o.scanMu.Unlock()
	if o.scanCancel != nil {
		o.scanCancel()
	}
}

// scanForTarget scans until a candidate passes the name filter, the RSSI
// window, the ledger check, and the proximity gate. Scanning is fully
// stopped before the candidate is returned; connecting while scanning is
// unreliable on every supported platform.
func (o *Orchestrator) scanForTarget(ctx context.Context) (ble.Candidate, bool) {
	scanCtx, cancel := context.WithCancel(ctx)
	o.scanMu.Lock()
	o.scanCancel = cancel
	o.scanMu.Unlock()
	defer cancel()

	// firstSeen is touched only from the scan callback, which the adapter
	// invokes serially.
	firstSeen := make(map[string]time.Time)
	var picked atomic.Bool
	found := make(chan ble.Candidate, 1)
	scanDone := make(chan error, 1)

	go func() {
		scanDone <- o.central.Scan(scanCtx, func(c ble.Candidate) {
			o.onSighting(c, firstSeen, &picked, found)
		})
	}()

	select {
	case cand := <-found:
		cancel()
		<-scanDone
		return cand, true
	case err := <-scanDone:
		if err != nil && scanCtx.Err() == nil {
			o.logf(levelError, fmt.Sprintf("scan failed: %v", err))
		}
		return ble.Candidate{}, false
	}
}

// onSighting applies the selection pipeline to one advertisement.
func (o *Orchestrator) onSighting(c ble.Candidate, firstSeen map[string]time.Time, picked *atomic.Bool, found chan<- ble.Candidate) {
	if picked.Load() {
		return
	}
	if !filter.IsTargetDevice(c.Name) {
		return
	}
	if o.telemetry != nil {
		o.telemetry.WriteSighting(c.Name, c.RSSI)
	}
	if !filter.InRSSIWindow(c.RSSI, o.opts.RSSIMin, o.opts.RSSIMax) {
		// Leaving the window resets the proximity clock.
		delete(firstSeen, c.Addr)
		return
	}
	// Haven controllers advertise with their hardware MAC as the BLE
	// address, so the ledger can suppress them by address alone.
	if o.ledger.Contains(c.Addr) {
		return
	}

	now := time.Now()
	first, seen := firstSeen[c.Addr]
	if !seen {
		firstSeen[c.Addr] = now
		o.logf(levelDebug, fmt.Sprintf("candidate sighted: %s (%d dBm), holding for proximity", c.Name, c.RSSI))
		return
	}
	if now.Sub(first) < o.opts.Proximity {
		return
	}

	if picked.CompareAndSwap(false, true) {
		found <- c
	}
}

// attempt runs one gated provisioning attempt and records its outcome.
func (o *Orchestrator) attempt(ctx context.Context, cand ble.Candidate, p Params) (Result, error) {
	if !o.sessionMu.TryLock() {
		o.logf(levelWarn, "provisioning already in progress; request ignored")
		return Result{}, ErrBusy
	}
	defer o.sessionMu.Unlock()

	return o.attemptLocked(ctx, cand, p)
}

// attemptLocked is the attempt body. Callers hold sessionMu.
func (o *Orchestrator) attemptLocked(ctx context.Context, cand ble.Candidate, p Params) (Result, error) {
	start := time.Now()
	res := Result{
		AttemptID:  uuid.NewString(),
		DeviceName: cand.Name,
		MAC:        "Unknown",
		Family:     identity.InferFamily(cand.Name),
		Firmware:   identity.UnknownFirmware,
		StartedAt:  start,
	}
	o.publishIdentity(&IdentityEvent{
		Stage:      "preliminary",
		DeviceName: cand.Name,
		Family:     res.Family,
	})

	func() {
		defer func() {
			if r := recover(); r != nil {
				o.fail(&res, fmt.Errorf("panic during provisioning: %v", r))
			}
		}()
		o.provision(ctx, cand, p, &res)
	}()

	res.Duration = time.Since(start)
	o.finishAttempt(ctx, res)
	return res, nil
}

// provision drives one connected session through the fixed command
// sequence. The session is disconnected on every exit path, including
// panic, and a Disconnecting status precedes the teardown.
func (o *Orchestrator) provision(ctx context.Context, cand ble.Candidate, p Params, res *Result) {
	session := ble.NewSession(o.central, cand, ble.SessionConfig{
		ConnectTimeout: o.opts.ConnectTimeout,
		IOTimeout:      o.opts.IOTimeout,
	}, o.logger)
	defer session.Close()
	defer o.setStatus(StatusDisconnecting)

	o.setStatus(StatusConnecting)
	if err := session.Connect(ctx); err != nil {
		o.fail(res, err)
		return
	}
	o.setStatus(StatusConnected)

	o.setStatus(StatusDiscoveringServices)
	if err := session.Discover(ctx); err != nil {
		o.fail(res, err)
		return
	}

	o.setStatus(StatusWaitingForResponse)
	reply, err := session.Send(ctx, ble.WhoAmI())
	if err != nil {
		o.fail(res, err)
		return
	}
	id, err := identity.ParseWhoAmI(reply)
	if err != nil {
		o.fail(res, fmt.Errorf("parsing identification reply: %w", err))
		return
	}

	res.MAC = id.MAC
	res.Firmware = id.Firmware
	if id.Family != identity.FamilyUnknown {
		res.Family = id.Family
	}
	o.publishIdentity(&IdentityEvent{
		Stage:      "final",
		DeviceName: cand.Name,
		Family:     res.Family,
		MACSuffix:  id.MACSuffix(),
		Firmware:   id.Firmware,
	})
	o.logf(levelInfo, fmt.Sprintf("identified %s: family=%s firmware=%s mac=…%s",
		cand.Name, res.Family, id.Firmware, id.MACSuffix()))

	typeID := res.Family.TypeID()
	if res.Family == identity.FamilyUnknown {
		typeID = filter.ControllerTypeID(cand.Name, o.logger)
	}

	locationID, err := filter.ResolveLocationID(p.LocationMode, p.LocationID, res.Family)
	if err != nil {
		o.fail(res, err)
		return
	}
	res.LocationID = locationID

	apiKey, err := o.cloud.GetAPIKey(ctx, id.MAC, typeID, p.BearerToken)
	if err != nil {
		o.fail(res, fmt.Errorf("fetching credentials: %w", err))
		return
	}

	o.setStatus(StatusProvisioning)
	cmds := []ble.Command{
		ble.SetAPIKey(apiKey),
		ble.SetSSID(p.WiFiSSID),
		ble.SetPassword(p.WiFiPassword),
	}
	if p.AnnounceURL != "" {
		cmds = append(cmds, ble.SetAnnounceURL(p.AnnounceURL))
	}
	cmds = append(cmds, ble.ServerConnect())

	for _, cmd := range cmds {
		if _, err := session.Send(ctx, cmd); err != nil {
			o.fail(res, fmt.Errorf("sending %s: %w", cmd.Name(), err))
			return
		}
	}

	// Registration is non-fatal: the device already holds working
	// credentials, so a cloud hiccup here must not fail the attempt.
	if err := o.cloud.AddDeviceToLocation(ctx, id.MAC, locationID, p.BearerToken); err != nil {
		o.logf(levelWarn, fmt.Sprintf("location registration failed, device keeps credentials: %v", err))
	}

	// Also non-fatal: a device that joined WiFi may have torn the BLE
	// link down already.
	if _, err := session.Send(ctx, ble.AdvertStop()); err != nil {
		o.logf(levelWarn, fmt.Sprintf("advert stop failed, device likely left provisioning mode: %v", err))
	}

	o.ledger.Add(ctx, LedgerEntry{
		MAC:        id.MAC,
		DeviceName: cand.Name,
		Family:     res.Family,
		LocationID: locationID,
	})
	o.events.Publish(Event{Type: EventDeviceAdded, Added: &DeviceAdded{
		MAC:        id.MAC,
		DeviceName: cand.Name,
		Family:     res.Family,
		LocationID: locationID,
	}})

	res.Success = true
	o.setStatus(StatusSuccess)
	o.logf(levelInfo, fmt.Sprintf("provisioned %s into location %d", cand.Name, locationID))
}

// fail marks the attempt failed and publishes the error status.
func (o *Orchestrator) fail(res *Result, err error) {
	res.Success = false
	res.Error = err.Error()
	o.setStatus(StatusError)
	o.logf(levelError, fmt.Sprintf("provisioning attempt failed: %v", err))
}

// finishAttempt publishes the result event and records history/telemetry.
func (o *Orchestrator) finishAttempt(ctx context.Context, res Result) {
	o.events.Publish(Event{Type: EventResult, Result: &res})

	if o.attempts != nil {
		if err := o.attempts.RecordAttempt(ctx, res); err != nil {
			o.logger.Warn("failed to record attempt", "attempt_id", res.AttemptID, "error", err)
		}
	}
	if o.telemetry != nil {
		o.telemetry.WriteAttempt(res)
	}
}

func (o *Orchestrator) setStatus(s Status) {
	o.statusMu.Lock()
	if o.status == s {
		o.statusMu.Unlock()
		return
	}
	o.status = s
	o.statusMu.Unlock()

	o.logger.Debug("status changed", "status", s.String())
	o.events.Publish(Event{Type: EventStatus, Status: s})
}

func (o *Orchestrator) publishIdentity(ev *IdentityEvent) {
	o.events.Publish(Event{Type: EventIdentity, Identity: ev})
}

// Log levels for the operator-facing ring buffer.
const (
	levelDebug = "debug"
	levelInfo  = "info"
	levelWarn  = "warn"
	levelError = "error"
)

// logf records a line in the ring, publishes it on the event stream, and
// mirrors it to the structured logger.
func (o *Orchestrator) logf(level, msg string) {
	o.logs.Append(level, msg)
	o.events.Publish(Event{Type: EventLog, Log: &LogEntry{Time: time.Now(), Level: level, Message: msg}})

	switch level {
	case levelDebug:
		o.logger.Debug(msg)
	case levelWarn:
		o.logger.Warn(msg)
	case levelError:
		o.logger.Error(msg)
	default:
		o.logger.Info(msg)
	}
}
