package controller

import (
	"context"

	"ess/common"

	"go.uber.org/zap"
)

type consumer struct {
	name  string
	reply common.ReplyFunc
}

// Sink hands every reply to the command client and to the best-effort consumers
// (monitor, recorder). Consumers are added before the sink is in use.
type Sink struct {
	client    common.ReplyFunc
	consumers []consumer
	logger    *zap.Logger
}

func NewSink(client common.ReplyFunc, logger *zap.Logger) *Sink {
	return &Sink{client: client, logger: logger.Named("Sink")}
}

func (s *Sink) Add(name string, reply common.ReplyFunc) {
	s.consumers = append(s.consumers, consumer{name: name, reply: reply})
}

// Reply returns the error of the command client only.
func (s *Sink) Reply(ctx context.Context, reply any) error {
	for _, c := range s.consumers {
		if err := c.reply(ctx, reply); err != nil {
			s.logger.Warn("consumer failed", zap.String("consumer", c.name), zap.Error(err))
		}
	}
	return s.client(ctx, reply)
}
