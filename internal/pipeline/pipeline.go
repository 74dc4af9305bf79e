package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"news-sector-backtest/internal/features"
	"news-sector-backtest/internal/labels"
	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/report"
	"news-sector-backtest/internal/service"
	"news-sector-backtest/internal/store"
	"news-sector-backtest/internal/strategy"
	"news-sector-backtest/internal/universe"
)

// Outcome 一次运行写出的主要产物
type Outcome struct {
	Result      *strategy.Result
	Summary     *report.RunSummary
	SummaryPath string
}

// Pipeline 依次执行：加载输入 -> 特征 -> 标签 -> 连接 -> 训练/回测 -> 报表
type Pipeline struct {
	cfg    *service.Config
	logger *zap.Logger
}

func New(cfg *service.Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger}
}

func (p *Pipeline) input(name string) string {
	return filepath.Join(p.cfg.DataDir, name)
}

func (p *Pipeline) output(name string) string {
	return filepath.Join(p.cfg.OutputDir, name)
}

// Mode 由 engine.balance_sectors 决定
func (p *Pipeline) Mode() model.RunMode {
	if p.cfg.Engine.BalanceSectors {
		return model.ModeBalanced
	}
	return model.ModeUnbalanced
}

// SeedUniverse 把内置股票池和别名表写到 data_dir
func (p *Pipeline) SeedUniverse() error {
	entries, aliases, err := universe.Defaults()
	if err != nil {
		return err
	}
	if err := store.WriteUniverse(p.input(p.cfg.Inputs.Universe), entries); err != nil {
		return fmt.Errorf("seed universe: %w", err)
	}
	if err := store.WriteAliases(p.input(p.cfg.Inputs.Aliases), aliases); err != nil {
		return fmt.Errorf("seed aliases: %w", err)
	}
	p.logger.Info("Universe seeded",
		zap.String("dir", p.cfg.DataDir),
		zap.Int("tickers", len(entries)),
		zap.Int("aliases", len(aliases)))
	return nil
}

// inputs 已加载的输入表
type inputs struct {
	index     universe.Index
	mapper    *universe.Mapper
	bars      []model.PriceBar
	headlines []model.Headline
}

// Run 执行一次完整的流水线。缺少必需输入、数据损坏等流水线级错误直接返回；
// 行级、ticker 级错误只排除对应数据并计入运行摘要
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	if p.cfg.SeedUniverse {
		return nil, p.SeedUniverse()
	}

	mode := p.Mode()
	summary := report.NewRunSummary(mode, p.cfg.Engine.Seed)
	logger := p.logger.With(zap.String("run_id", summary.RunID), zap.String("mode", string(mode)))
	logger.Info("Pipeline started", zap.String("data_dir", p.cfg.DataDir), zap.String("output_dir", p.cfg.OutputDir))

	in, err := p.loadInputs(logger, summary)
	if err != nil {
		return nil, err
	}

	training, err := p.buildTrainingData(ctx, logger, summary, in)
	if err != nil {
		return nil, err
	}

	// 回测的输入是落盘后的 training_data.csv
	rows, err := store.LoadTraining(p.output(store.TrainingDataFile))
	if err != nil {
		return nil, err
	}
	if len(rows) != len(training) {
		return nil, fmt.Errorf("training data round trip: wrote %d rows, read %d", len(training), len(rows))
	}

	engine := strategy.NewEngine(p.engineConfig(mode), logger)
	res, err := engine.Run(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("engine (stage %s): %w", engine.Stage(), err)
	}
	if res.Split.Dropped > 0 {
		balance := model.NewStageCounts("balance")
		balance.In = len(res.Split.Train) + res.Split.Dropped
		balance.Out = len(res.Split.Train)
		balance.Excluded[model.ReasonBalancedOut] = res.Split.Dropped
		summary.AddStage(balance)
	}
	for _, w := range res.Warnings {
		logger.Warn("Engine warning", zap.String("warning", w))
	}

	writer := report.NewWriter(p.cfg.OutputDir, mode, logger)
	if err := writer.WriteAll(res); err != nil {
		return nil, err
	}
	summary.SetEngine(res)
	path, err := summary.Write(writer)
	if err != nil {
		return nil, err
	}

	logger.Info("Pipeline finished",
		zap.String("final_stage", string(res.FinalStage)),
		zap.String("test_accuracy", service.FormatFloat(res.TestAccuracy)),
		zap.Int("trades", len(res.Trades)),
		zap.String("summary", path))
	return &Outcome{Result: res, Summary: summary, SummaryPath: path}, nil
}

func (p *Pipeline) engineConfig(mode model.RunMode) strategy.EngineConfig {
	return strategy.EngineConfig{
		TrainFraction: p.cfg.Engine.TrainFraction,
		CostBps:       p.cfg.Engine.CostBps,
		Seed:          p.cfg.Engine.Seed,
		Mode:          mode,
		ProbThreshold: p.cfg.Engine.ProbThreshold,
		L2:            p.cfg.Engine.L2,
		MaxIterations: p.cfg.Engine.MaxIterations,
		VolWindow:     p.cfg.Stats.VolWindow,
		Annualization: p.cfg.Stats.Annualization,
		MinActiveDays: p.cfg.Stats.MinActiveDays,
		Confidence:    p.cfg.Stats.Confidence,
	}
}

// loadInputs 股票池、价格和新闻是必需的；别名表缺失时退回内置别名
func (p *Pipeline) loadInputs(logger *zap.Logger, summary *report.RunSummary) (*inputs, error) {
	entries, err := store.LoadUniverse(p.input(p.cfg.Inputs.Universe))
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	index := universe.NewIndex(entries)
	uc := model.NewStageCounts("universe")
	uc.In, uc.Out = len(entries), len(entries)
	summary.AddStage(uc)

	aliases, aliasErrs, err := store.LoadAliases(p.input(p.cfg.Inputs.Aliases))
	if errors.Is(err, model.ErrMissingArtifact) {
		logger.Warn("Alias table missing, using built-in aliases", zap.Error(err))
		summary.Warn("alias table missing, built-in aliases used")
		if _, aliases, err = universe.Defaults(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	mapper, rejected := universe.NewMapper(aliases, index)
	ac := model.NewStageCounts("aliases")
	ac.In = len(aliases) + len(aliasErrs)
	ac.Out = mapper.Len()
	p.countRowErrors(logger, ac, "aliases", aliasErrs)
	for _, err := range rejected {
		ac.Exclude(model.ReasonUnknownTicker)
		logger.Debug("Alias rejected", zap.Error(err))
	}
	if len(rejected) > 0 {
		logger.Warn("Aliases rejected", zap.Int("count", len(rejected)))
	}
	summary.AddStage(ac)

	bars, priceErrs, err := store.LoadPrices(p.input(p.cfg.Inputs.Prices))
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	pc := model.NewStageCounts("prices")
	pc.In, pc.Out = len(bars)+len(priceErrs), len(bars)
	p.countRowErrors(logger, pc, "prices", priceErrs)
	summary.AddStage(pc)

	headlines, headlineErrs, err := store.LoadHeadlines(p.input(p.cfg.Inputs.Headlines))
	if err != nil {
		return nil, fmt.Errorf("load headlines: %w", err)
	}
	hc := model.NewStageCounts("headlines")
	hc.In, hc.Out = len(headlines)+len(headlineErrs), len(headlines)
	p.countRowErrors(logger, hc, "headlines", headlineErrs)
	summary.AddStage(hc)

	logger.Info("Inputs loaded",
		zap.Int("tickers", len(entries)),
		zap.Int("aliases", mapper.Len()),
		zap.Int("price_bars", len(bars)),
		zap.Int("headlines", len(headlines)))
	return &inputs{index: index, mapper: mapper, bars: bars, headlines: headlines}, nil
}

// countRowErrors 行级错误记为 bad_row，逐行输出 debug 日志
func (p *Pipeline) countRowErrors(logger *zap.Logger, counts *model.StageCounts, source string, errs []error) {
	for _, err := range errs {
		counts.Exclude(model.ReasonBadRow)
		logger.Debug("Row excluded", zap.String("source", source), zap.Error(err))
	}
	if len(errs) > 0 {
		logger.Warn("Rows excluded", zap.String("source", source), zap.Int("count", len(errs)))
	}
}

// buildTrainingData 特征、标签、连接，并写出三个中间产物
func (p *Pipeline) buildTrainingData(ctx context.Context, logger *zap.Logger, summary *report.RunSummary, in *inputs) ([]model.TrainingRow, error) {
	scorer, err := features.NewLexiconScorer()
	if err != nil {
		return nil, err
	}
	loc, err := service.LoadLocation(p.cfg.Leakage.Timezone)
	if err != nil {
		return nil, err
	}
	cutoff, err := service.ParseClock(p.cfg.Leakage.Cutoff)
	if err != nil {
		return nil, err
	}
	opts := features.Options{
		Location:  loc,
		Cutoff:    cutoff,
		Policy:    features.Policy(p.cfg.Features.ZeroHeadlinePolicy),
		SMAPeriod: p.cfg.Features.SMAPeriod,
	}

	feat, err := features.NewBuilder(in.index, in.mapper, scorer, opts, logger).Build(ctx, in.headlines, in.bars)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}
	summary.AddStage(feat.Mapping)
	summary.AddStage(feat.Attribution)
	summary.AddStage(feat.Counts)
	if feat.LateAttributed > 0 {
		summary.Warn("%d headline-ticker pairs attributed to a later trading day (after %s %s or non-trading day)",
			feat.LateAttributed, p.cfg.Leakage.Cutoff, p.cfg.Leakage.Timezone)
	}

	lab, err := labels.NewBuilder(in.index, logger).Build(ctx, in.bars)
	if err != nil {
		return nil, fmt.Errorf("build labels: %w", err)
	}
	summary.AddStage(lab.Counts)
	for _, rejected := range lab.Rejected {
		summary.Warn("labels: %v", rejected)
	}

	training, joinCounts := labels.Join(feat.Rows, lab.Rows)
	summary.AddStage(joinCounts)
	logger.Info("Training data joined", zap.Int("rows", len(training)))
	if len(training) == 0 {
		return nil, &model.DataError{Source: "join", Msg: "no (ticker, date) has both features and a label"}
	}

	if err := store.WriteFeatures(p.output(store.FeaturesFile), feat.Rows); err != nil {
		return nil, err
	}
	if err := store.WriteLabels(p.output(store.LabelsFile), lab.Rows); err != nil {
		return nil, err
	}
	if err := store.WriteTraining(p.output(store.TrainingDataFile), training); err != nil {
		return nil, err
	}
	return training, nil
}
