package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/capvault/capsearch/internal/cfg"
	"github.com/capvault/capsearch/internal/usecase"
	"github.com/capvault/capsearch/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Consumer слушает события публикации индекса и перечитывает артефакты.
// Каждый процесс поиска использует собственный group id, чтобы событие
// доходило до всех реплик, а не до одной из них.
type Consumer struct {
	reader *kafka.Reader
	search usecase.SearchUC
	logger logger.Logger
	wg     sync.WaitGroup
}

func NewConsumer(search usecase.SearchUC, logger logger.Logger, cfg *cfg.KafkaCfg) *Consumer {
	// Суффикс делает group id уникальным для процесса: реплики не делят
	// партиции между собой, каждая получает событие целиком.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID + "-" + uuid.NewString(),
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		search: search,
		logger: logger,
	}
}

// Start запускает цикл чтения. Останавливается отменой контекста и Close.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

func (c *Consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) {
				return
			}

			c.logger.Warnf("Kafka read failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		var event indexPublishedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warnf("unparseable index event, offset %d: %v", msg.Offset, err)
			continue
		}

		c.logger.Infof("index event %s received: %d vectors, reloading", event.EventID, event.Vectors)

		if err := c.search.ReloadIndex(ctx); err != nil {
			c.logger.Errorf(err, "index reload after event %s failed", event.EventID)
		}
	}
}

func (c *Consumer) Close() error {
	err := c.reader.Close()
	c.wg.Wait()

	return err
}
