package sink

import (
	"context"
	"fmt"

	"github.com/tunelab/trialrun/internal/config"
	"github.com/tunelab/trialrun/internal/katib"
	"github.com/tunelab/trialrun/internal/mlflow"
	"github.com/tunelab/trialrun/internal/pkg/errors"
	"github.com/tunelab/trialrun/internal/pkg/logger"
)

// New builds the configured sink set. Identity may be nil when the worker
// runs outside a search-controlled trial context; sinks that require it
// fail as a precondition here, before any computation runs.
//
// All precondition checks happen before any sink acquires a resource, so a
// misconfigured worker never leaves a half-open run or file behind.
func New(ctx context.Context, cfg *config.Config, info *katib.TrialInfo, log *logger.Logger) ([]Sink, error) {
	if log == nil {
		log = logger.Default()
	}

	types := cfg.SinkTypes()
	if err := checkPreconditions(cfg, info, types); err != nil {
		return nil, err
	}

	trialName := ""
	if info != nil {
		trialName = info.TrialName
	}

	var sinks []Sink
	for _, typ := range types {
		s, err := build(ctx, typ, cfg, info, trialName)
		if err != nil {
			// Release whatever was already acquired
			_ = CloseAll(sinks, true)
			return nil, err
		}
		sinks = append(sinks, NewLoggedSink(s, log))
	}

	return sinks, nil
}

func checkPreconditions(cfg *config.Config, info *katib.TrialInfo, types []string) error {
	for _, typ := range types {
		switch typ {
		case config.SinkStdout:
			// No inputs required

		case config.SinkEvents:
			if cfg.EventDir == "" {
				return errors.PreconditionError("events sink requires event_dir to be configured")
			}

		case config.SinkTracking:
			if info == nil {
				return errors.PreconditionError("tracking sink requires a resolved trial identity")
			}
			if cfg.Tracking.URI == "" {
				return errors.PreconditionError("tracking sink requires tracking.uri to be configured")
			}

		case config.SinkKafka:
			if len(ParseBrokers(cfg.Kafka.Brokers)) == 0 {
				return errors.PreconditionError("kafka sink requires kafka.brokers to be configured")
			}

		case config.SinkRedis:
			if cfg.Redis.URL == "" {
				return errors.PreconditionError("redis sink requires redis.url to be configured")
			}

		default:
			return errors.ValidationError(fmt.Sprintf("unknown sink type: %s", typ))
		}
	}
	return nil
}

func build(ctx context.Context, typ string, cfg *config.Config, info *katib.TrialInfo, trialName string) (Sink, error) {
	switch typ {
	case config.SinkStdout:
		return NewStdoutSink(), nil

	case config.SinkEvents:
		return NewEventWriter(cfg.EventDir)

	case config.SinkTracking:
		client := mlflow.New(mlflow.Config{
			BaseURL: cfg.Tracking.URI,
			Timeout: cfg.Tracking.Timeout,
		})
		return OpenTrackingSink(ctx, client, info, cfg.Tracking.PathPrefix)

	case config.SinkKafka:
		return NewKafkaSink(KafkaSinkConfig{
			Brokers:  ParseBrokers(cfg.Kafka.Brokers),
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
			Trial:    trialName,
		})

	case config.SinkRedis:
		return NewRedisSink(RedisSinkConfig{
			URL:    cfg.Redis.URL,
			Prefix: cfg.Redis.Prefix,
			Trial:  trialName,
			TTL:    cfg.Redis.TTL,
		})

	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown sink type: %s", typ))
	}
}
