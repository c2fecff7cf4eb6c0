package app

import (
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/logger"
	"github.com/thejerf/suture/v4"
)

// SupervisorConfig holds the restart policy for the supervised loop.
type SupervisorConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64
	// FailureBackoff is the wait when the threshold is exceeded.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long a service may take to stop.
	ShutdownTimeout time.Duration
}

// DefaultSupervisorConfig mirrors suture's own defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// NewSupervisor returns a root supervisor that restarts services returning
// unexpectedly and reports its events through log.
func NewSupervisor(log logger.Logger, cfg SupervisorConfig) *suture.Supervisor {
	def := DefaultSupervisorConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	return suture.New("cine-khobor", suture.Spec{
		EventHook:        eventHook(logger.Ensure(log)),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}

// eventHook routes supervisor events to the structured logger.
func eventHook(log logger.Logger) suture.EventHook {
	return func(e suture.Event) {
		switch e.(type) {
		case suture.EventServicePanic, suture.EventStopTimeout:
			log.ErrorObj(e.String(), "supervisor_event", e.Map())
		case suture.EventServiceTerminate, suture.EventBackoff:
			log.WarnObj(e.String(), "supervisor_event", e.Map())
		default:
			log.InfoObj(e.String(), "supervisor_event", e.Map())
		}
	}
}
