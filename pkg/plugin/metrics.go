package plugin

import (
	"strconv"

	"github.com/crystal-mush/localchat/pkg/chatstate"
	"github.com/crystal-mush/localchat/pkg/compat"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metric descriptors for chat routing.
type Metrics struct {
	chatMessages   *prometheus.CounterVec
	targetsSent    *prometheus.CounterVec
	targetsDropped prometheus.Counter
	blocked        *prometheus.CounterVec
	capabilities   *prometheus.CounterVec
	commands       *prometheus.CounterVec
}

// NewMetrics creates the chat metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localchat_messages_total",
			Help: "Chat lines routed, by mode.",
		}, []string{"mode"}),
		targetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localchat_targets_delivered_total",
			Help: "Recipients a chat line was delivered to, by mode.",
		}, []string{"mode"}),
		targetsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localchat_targets_filtered_total",
			Help: "Recipients dropped by the local radius or world filter.",
		}),
		blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localchat_messages_blocked_total",
			Help: "Chat lines stopped by a disable switch, by mode.",
		}, []string{"mode"}),
		capabilities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localchat_capability_resolutions_total",
			Help: "Host capability resolutions, by operation and outcome.",
		}, []string{"op", "available"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localchat_commands_total",
			Help: "Commands run, by command and result.",
		}, []string{"command", "result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.chatMessages,
			m.targetsSent,
			m.targetsDropped,
			m.blocked,
			m.capabilities,
			m.commands,
		)
	}
	return m
}

// ChatRouted implements chat.Recorder.
func (m *Metrics) ChatRouted(mode chatstate.Mode, delivered, filtered int) {
	label := mode.String()
	m.chatMessages.WithLabelValues(label).Inc()
	m.targetsSent.WithLabelValues(label).Add(float64(delivered))
	m.targetsDropped.Add(float64(filtered))
}

// ChatBlocked counts a line stopped before routing.
func (m *Metrics) ChatBlocked(mode chatstate.Mode) {
	m.blocked.WithLabelValues(mode.String()).Inc()
}

// CapabilityResolved is the adapter's OnResolve hook.
func (m *Metrics) CapabilityResolved(op compat.Op, available bool) {
	m.capabilities.WithLabelValues(string(op), strconv.FormatBool(available)).Inc()
}

// CommandRun counts one command invocation.
func (m *Metrics) CommandRun(command, result string) {
	m.commands.WithLabelValues(command, result).Inc()
}
