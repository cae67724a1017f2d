package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/forest-loss-pipeline/internal/config"
	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/couchcryptid/forest-loss-pipeline/internal/model"
	"github.com/couchcryptid/forest-loss-pipeline/internal/observability"
	"github.com/google/uuid"
)

// TrainingResult holds the three evaluations of one training run.
type TrainingResult struct {
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	TrainSize   int                  `json:"train_size"`
	TestSize    int                  `json:"test_size"`
	Secondary   int                  `json:"secondary_size"`
	Excluded    model.ExclusionStats `json:"excluded"`

	// Baseline scores the first forest on the held-out partition.
	Baseline model.Report `json:"baseline"`
	// Reloaded scores the first forest on the independently reloaded table.
	Reloaded model.Report `json:"reloaded"`
	// Final scores a forest retrained on the training partition plus the
	// reloaded table, again on the held-out partition. The reloaded table
	// contains the held-out samples, so this score is optimistic.
	Final model.Report `json:"final"`
}

// WriteReport prints the three classification reports.
func (r TrainingResult) WriteReport(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"run %s at %s: %d train, %d test, %d reloaded\n\n"+
			"Baseline model on test set\n%s\n"+
			"Baseline model on reloaded set\n%s\n"+
			"Retrained model on test set\n%s",
		r.RunID, r.GeneratedAt.Format(time.RFC3339), r.TrainSize, r.TestSize, r.Secondary,
		r.Baseline, r.Reloaded, r.Final,
	)
	return err
}

// Trainer fits the loss-year classifier on the joined table.
type Trainer struct {
	source  JoinedExtractor
	cfg     config.TrainConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTrainer creates a Trainer. The source is read twice per run: once to
// fit and once as the secondary evaluation set.
func NewTrainer(source JoinedExtractor, cfg config.TrainConfig, logger *slog.Logger, metrics *observability.Metrics) *Trainer {
	return &Trainer{source: source, cfg: cfg, logger: logger, metrics: metrics}
}

// Run trains, evaluates, retrains and evaluates again.
func (t *Trainer) Run(ctx context.Context) (TrainingResult, error) {
	start := domain.Now()
	res := TrainingResult{RunID: uuid.NewString()}
	logger := t.logger.With("run_id", res.RunID)

	data, err := t.load(ctx, &res.Excluded)
	if err != nil {
		return TrainingResult{}, err
	}
	t.metrics.ExcludedSamples.WithLabelValues("missing_label").Add(float64(res.Excluded.MissingLabel))
	t.metrics.ExcludedSamples.WithLabelValues("missing_covariate").Add(float64(res.Excluded.MissingCovariate))
	logger.Info("training data loaded",
		"samples", data.Len(),
		"missing_label", res.Excluded.MissingLabel,
		"missing_covariate", res.Excluded.MissingCovariate,
	)

	// The scaler sees every sample before the split.
	var scaler model.MinMaxScaler
	if data.X, err = scaler.FitTransform(data.X); err != nil {
		return TrainingResult{}, fmt.Errorf("scale features: %w", err)
	}
	logFittedRanges(logger, &scaler)

	train, test, err := model.TrainTestSplit(data, t.cfg.TestFraction, t.cfg.Seed)
	if err != nil {
		return TrainingResult{}, err
	}
	res.TrainSize, res.TestSize = train.Len(), test.Len()

	forest := model.NewRandomForest(t.cfg.Trees, t.cfg.Seed)
	if err := forest.Fit(train); err != nil {
		return TrainingResult{}, fmt.Errorf("fit baseline: %w", err)
	}
	if res.Baseline, err = evaluate(forest, test); err != nil {
		return TrainingResult{}, fmt.Errorf("evaluate baseline: %w", err)
	}
	logger.Info("baseline evaluated", "accuracy", res.Baseline.Accuracy, "test", test.Len())

	var ignored model.ExclusionStats
	secondary, err := t.load(ctx, &ignored)
	if err != nil {
		return TrainingResult{}, fmt.Errorf("reload: %w", err)
	}
	if secondary.X, err = scaler.Transform(secondary.X); err != nil {
		return TrainingResult{}, fmt.Errorf("scale reloaded features: %w", err)
	}
	res.Secondary = secondary.Len()
	if res.Reloaded, err = evaluate(forest, secondary); err != nil {
		return TrainingResult{}, fmt.Errorf("evaluate reloaded: %w", err)
	}
	logger.Info("reloaded set evaluated", "accuracy", res.Reloaded.Accuracy, "samples", secondary.Len())

	combined, err := model.Concat(train, secondary)
	if err != nil {
		return TrainingResult{}, err
	}
	retrained := model.NewRandomForest(t.cfg.Trees, t.cfg.Seed)
	if err := retrained.Fit(combined); err != nil {
		return TrainingResult{}, fmt.Errorf("fit retrained: %w", err)
	}
	if res.Final, err = evaluate(retrained, test); err != nil {
		return TrainingResult{}, fmt.Errorf("evaluate retrained: %w", err)
	}
	logger.Info("retrained model evaluated", "accuracy", res.Final.Accuracy, "train", combined.Len())

	t.metrics.TrainingSamples.WithLabelValues("train").Set(float64(res.TrainSize))
	t.metrics.TrainingSamples.WithLabelValues("test").Set(float64(res.TestSize))
	t.metrics.TrainingSamples.WithLabelValues("secondary").Set(float64(res.Secondary))
	t.metrics.Accuracy.WithLabelValues("baseline").Set(res.Baseline.Accuracy)
	t.metrics.Accuracy.WithLabelValues("secondary").Set(res.Reloaded.Accuracy)
	t.metrics.Accuracy.WithLabelValues("final").Set(res.Final.Accuracy)

	res.GeneratedAt = domain.Now()
	stageSucceeded(t.metrics, StageTrain, start)
	return res, nil
}

// load reads the joined table and keeps the complete, labelled samples.
func (t *Trainer) load(ctx context.Context, excluded *model.ExclusionStats) (model.Dataset, error) {
	records, err := t.source.ExtractJoined(ctx)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("extract joined table: %w", err)
	}
	data, stats := model.BuildDataset(records)
	*excluded = stats
	if data.Len() == 0 {
		return model.Dataset{}, fmt.Errorf("build dataset from %d records: %w", len(records), model.ErrEmptyTrainingSet)
	}
	return data, nil
}

func logFittedRanges(logger *slog.Logger, s *model.MinMaxScaler) {
	for j, name := range model.FeatureNames {
		if lo, hi, ok := s.Range(j); ok {
			logger.Debug("feature scaled", "feature", name, "min", lo, "max", hi)
		}
	}
}

func evaluate(f *model.RandomForest, d model.Dataset) (model.Report, error) {
	pred, err := f.Predict(d.X)
	if err != nil {
		return model.Report{}, err
	}
	return model.Evaluate(d.Y, pred)
}
