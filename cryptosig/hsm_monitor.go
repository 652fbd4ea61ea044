package cryptosig

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"cosmossdk.io/log"
)

// SignerState represents the three operating states of a signer device
// backend. The reveal path consults CanSign before trusting a device to
// author PredictionRevealed signatures (§6: "Signer device: ... rejects if
// no active set").
type SignerState int32

const (
	SignerStateLive        SignerState = 0 // device reachable, signing works
	SignerStateDegraded    SignerState = 1 // device unreachable, signing disabled, verification still OK
	SignerStateUnavailable SignerState = 2 // timeout exceeded, device must be treated as down
)

func (s SignerState) String() string {
	switch s {
	case SignerStateLive:
		return "LIVE"
	case SignerStateDegraded:
		return "DEGRADED"
	case SignerStateUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// SignerMonitorConfig holds tunables loaded from env.
type SignerMonitorConfig struct {
	HealthInterval  time.Duration // ORACLE_SIGNER_HEALTH_INTERVAL (default 10s)
	FailThreshold   int           // ORACLE_SIGNER_FAIL_THRESHOLD (default 3)
	FailoverTimeout time.Duration // ORACLE_SIGNER_FAILOVER_TIMEOUT (default 300s, 0=∞)
	AlertWebhook    string        // ORACLE_SIGNER_ALERT_WEBHOOK (optional)
}

// SignerMonitorConfigFromEnv reads config from environment variables with
// safe defaults.
func SignerMonitorConfigFromEnv() SignerMonitorConfig {
	cfg := SignerMonitorConfig{
		HealthInterval:  10 * time.Second,
		FailThreshold:   3,
		FailoverTimeout: 300 * time.Second,
	}
	if v := os.Getenv("ORACLE_SIGNER_HEALTH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HealthInterval = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("ORACLE_SIGNER_FAIL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FailThreshold = n
		}
	}
	if v := os.Getenv("ORACLE_SIGNER_FAILOVER_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FailoverTimeout = time.Duration(n) * time.Second
		}
	}
	cfg.AlertWebhook = os.Getenv("ORACLE_SIGNER_ALERT_WEBHOOK")
	return cfg
}

// HealthCheckFn is called to verify signer device reachability. In
// production: a no-op call against the device. In tests: inject a mock.
type HealthCheckFn func() error

// SignerMonitor runs the health check loop and drives the signer device
// state machine, adapted from the node's HSM failover monitor.
type SignerMonitor struct {
	cfg           SignerMonitorConfig
	check         HealthCheckFn
	state         atomic.Int32
	failCount     int
	readOnlySince time.Time
	mu            sync.Mutex
	onUnavailable func() // called once when entering UNAVAILABLE
	logger        log.Logger
}

// NewSignerMonitor creates a SignerMonitor. onUnavailable is called once
// when the device transitions to UNAVAILABLE — use it to stop relying on
// the device's signatures.
func NewSignerMonitor(cfg SignerMonitorConfig, check HealthCheckFn, onUnavailable func(), logger log.Logger) *SignerMonitor {
	m := &SignerMonitor{
		cfg:           cfg,
		check:         check,
		onUnavailable: onUnavailable,
		logger:        logger,
	}
	m.state.Store(int32(SignerStateLive))
	return m
}

// State returns the current signer device state (safe for concurrent reads).
func (m *SignerMonitor) State() SignerState {
	return SignerState(m.state.Load())
}

// CanSign returns true only when the device is LIVE.
func (m *SignerMonitor) CanSign() bool {
	return m.State() == SignerStateLive
}

// Run starts the health check loop. Blocks until ctx is cancelled.
func (m *SignerMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *SignerMonitor) tick() {
	err := m.check()
	m.mu.Lock()
	defer m.mu.Unlock()

	current := SignerState(m.state.Load())

	if err == nil {
		if current != SignerStateLive {
			m.logger.Info("signer device recovered", "from", current.String(), "to", "LIVE")
			m.logStructured("signer_state_change", current, SignerStateLive, 0, "")
		}
		m.failCount = 0
		m.state.Store(int32(SignerStateLive))
		return
	}

	m.failCount++
	m.logger.Error("signer device health check failed",
		"fail_count", m.failCount,
		"threshold", m.cfg.FailThreshold,
		"error", err.Error(),
	)

	if current == SignerStateLive && m.failCount >= m.cfg.FailThreshold {
		m.readOnlySince = time.Now()
		m.state.Store(int32(SignerStateDegraded))
		m.logger.Error("signer device unreachable, entering DEGRADED state",
			"fail_count", m.failCount,
		)
		m.logStructured("signer_state_change", SignerStateLive, SignerStateDegraded, m.failCount, err.Error())
		m.sendAlert(SignerStateDegraded, m.failCount)
		return
	}

	if current == SignerStateDegraded && m.cfg.FailoverTimeout > 0 {
		if time.Since(m.readOnlySince) >= m.cfg.FailoverTimeout {
			m.state.Store(int32(SignerStateUnavailable))
			m.logger.Error("signer device timeout exceeded, entering UNAVAILABLE state",
				"timeout", m.cfg.FailoverTimeout.String(),
			)
			m.logStructured("signer_state_change", SignerStateDegraded, SignerStateUnavailable, m.failCount, err.Error())
			m.sendAlert(SignerStateUnavailable, m.failCount)
			if m.onUnavailable != nil {
				go m.onUnavailable()
			}
		}
	}
}

type signerEvent struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Event     string `json:"event"`
	From      string `json:"from"`
	To        string `json:"to"`
	FailCount int    `json:"fail_count"`
	Reason    string `json:"reason,omitempty"`
}

func (m *SignerMonitor) logStructured(event string, from, to SignerState, fc int, reason string) {
	ev := signerEvent{
		TS:        time.Now().UTC().Format(time.RFC3339),
		Level:     levelFor(to),
		Event:     event,
		From:      from.String(),
		To:        to.String(),
		FailCount: fc,
		Reason:    reason,
	}
	b, _ := json.Marshal(ev)
	m.logger.Debug(string(b))
}

func levelFor(s SignerState) string {
	switch s {
	case SignerStateUnavailable:
		return "ERROR"
	case SignerStateDegraded:
		return "WARN"
	default:
		return "INFO"
	}
}

type alertPayload struct {
	Event     string `json:"event"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
	FailCount int    `json:"fail_count"`
}

func (m *SignerMonitor) sendAlert(state SignerState, fc int) {
	if m.cfg.AlertWebhook == "" {
		return
	}
	payload := alertPayload{
		Event:     "signer_failover",
		State:     state.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		FailCount: fc,
	}
	b, _ := json.Marshal(payload)
	go func() {
		resp, err := http.Post(m.cfg.AlertWebhook, "application/json", bytes.NewReader(b))
		if err != nil {
			m.logger.Error("signer alert webhook failed", "error", err.Error())
			return
		}
		resp.Body.Close()
	}()
}
