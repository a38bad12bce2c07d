package bus

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// EnsureTopics creates every topic if absent. An existing topic is success;
// any other failure is returned and is meant to abort startup.
func EnsureTopics(ctx context.Context, p Provisioner, log *zap.Logger, topics ...string) error {
	for _, topic := range topics {
		err := p.CreateTopic(ctx, topic)
		switch {
		case err == nil:
			log.Info("topic created", zap.String("topic", topic))
		case errors.Is(err, ErrTopicExists):
			log.Debug("topic already exists", zap.String("topic", topic))
		default:
			return fmt.Errorf("bus: provision %s: %w", topic, err)
		}
	}
	return nil
}
