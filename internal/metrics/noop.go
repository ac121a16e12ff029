package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordDecision(sourceKind, outcome string, duration time.Duration) {}
func (n *NoopMetrics) RecordSourceError(sourceKind string)                               {}
func (n *NoopMetrics) RecordVaultWrite(success bool)                                     {}
