package kafka

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/config"
	alertkafka "github.com/TheAVengineer/CarScout-AI/internal/domain/alert/delivery/kafka"
	channelkafka "github.com/TheAVengineer/CarScout-AI/internal/domain/channel/delivery/kafka"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	pipelinekafka "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/delivery/kafka"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
)

// Module provides the queue layer: producer, outbox relay and one consumer
// per stage topic
var Module = fx.Module("kafka",
	fx.Provide(NewProducerFx),
	fx.Invoke(registerRelayLifecycle),
	fx.Invoke(registerConsumers),
)

// NewProducerFx creates the producer with lifecycle cleanup
func NewProducerFx(lc fx.Lifecycle, cfg *config.KafkaConfig, logger zerolog.Logger) *Producer {
	producer := NewProducer(cfg, logger.With().Str("component", "kafka-producer").Logger())

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer
}

func registerRelayLifecycle(lc fx.Lifecycle, db *gorm.DB, producer *Producer, logger zerolog.Logger) {
	relay := NewOutboxRelay(db, producer, logger.With().Str("component", "outbox-relay").Logger())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			relay.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			return relay.Stop()
		},
	})
}

// registerConsumers wires one StageConsumer per topic
func registerConsumers(
	lc fx.Lifecycle,
	cfg *config.KafkaConfig,
	pipelineCfg *config.PipelineConfig,
	llmCfg *config.LLMConfig,
	producer *Producer,
	pipelineHandlers *pipelinekafka.Handlers,
	channelHandlers *channelkafka.Handlers,
	alertHandlers *alertkafka.Handlers,
	quarantine deps.QuarantineRepository,
	logger zerolog.Logger,
) {
	type stage struct {
		topic   string
		handler Handler
	}

	stages := []stage{
		{consts.TopicScrape, pipelineHandlers.HandleScrape},
		{consts.TopicParse, pipelineHandlers.HandleParse},
		{consts.TopicNormalize, pipelineHandlers.HandleNormalize},
		{consts.TopicDedupe, pipelineHandlers.HandleDedupe},
		{consts.TopicPrice, pipelineHandlers.HandlePrice},
		{consts.TopicRisk, pipelineHandlers.HandleRisk},
		{consts.TopicScore, pipelineHandlers.HandleScore},
		{consts.TopicChannel, channelHandlers.HandleChannelDelivery},
		{consts.TopicAlertMatch, alertHandlers.HandleAlertMatch},
		{consts.TopicNotify, alertHandlers.HandleNotify},
	}

	onDead := quarantineSink(quarantine, logger)

	for _, st := range stages {
		timeout := pipelineCfg.StageTimeout
		if st.topic == consts.TopicRisk {
			// the risk stage owns the separate LLM budget on top of its work
			timeout = pipelineCfg.StageTimeout + llmCfg.Timeout
		}

		consumer := NewStageConsumer(
			cfg,
			st.topic,
			st.handler,
			producer,
			pipelineCfg.MaxAttempts,
			timeout,
			onDead,
			logger.With().Str("component", "consumer:"+st.topic).Logger(),
		)

		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				consumer.Start()
				return nil
			},
			OnStop: func(_ context.Context) error {
				return consumer.Stop()
			},
		})
	}
}

// quarantineSink surfaces exhausted tasks as operational records
func quarantineSink(quarantine deps.QuarantineRepository, logger zerolog.Logger) DeadLetterFunc {
	return func(ctx context.Context, topic string, payload []byte, attempts int, lastErr error) {
		var task dto.ListingTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return
		}
		id := task.ListingID
		if id == uuid.Nil {
			id = task.RawID
		}

		errText := ""
		if lastErr != nil {
			errText = lastErr.Error()
		}
		if err := quarantine.Add(ctx, &entities.QuarantinedTask{
			ListingID: id,
			Stage:     topic,
			Attempts:  attempts,
			LastError: errText,
		}); err != nil {
			logger.Error().Err(err).Msg("Failed to quarantine task")
		}
	}
}
