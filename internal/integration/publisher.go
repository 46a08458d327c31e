package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// Subject layout:
//
//	meshmon.repeater.<pubkey>.telemetry  每次成功轮询发布一条遥测样本
//	meshmon.repeater.<pubkey>.state      中继器在线状态翻转时发布
//
// Messages are JSON. External consumers (alerting, long-term archival)
// subscribe with meshmon.repeater.*.telemetry style wildcards.

// Publisher 把轮询事件转发到 NATS 供外部系统消费
type Publisher struct {
	nc *nats.Conn
}

// ConnectOptions configures the NATS connection.
type ConnectOptions struct {
	URL               string
	MaxReconnects     int
	ReconnectInterval time.Duration
}

// Connect establishes the NATS connection and returns a Publisher
// bound to it.
func Connect(opts ConnectOptions) (*Publisher, error) {
	nc, err := nats.Connect(opts.URL,
		nats.Name("meshcore-dashboard"),
		nats.ReconnectWait(opts.ReconnectInterval),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", opts.URL).Msg("Connected to NATS")
	return &Publisher{nc: nc}, nil
}

// PublishSample 发布一条遥测样本
func (p *Publisher) PublishSample(sample *models.TelemetrySample) {
	p.publish(fmt.Sprintf("meshmon.repeater.%s.telemetry", sample.PublicKey), sample)
}

// PublishState publishes a state change event. The scheduler calls
// this only on liveness transitions, not on every poll.
func (p *Publisher) PublishState(state models.RepeaterState) {
	p.publish(fmt.Sprintf("meshmon.repeater.%s.state", state.PublicKey), state)
}

// publish 序列化并发布, 失败只记录日志, 不影响轮询
func (p *Publisher) publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to marshal event")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
