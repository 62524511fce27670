package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/config"
	"github.com/quantfx/fxbacktester/eventhandlers/exits"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventhandlers/matching"
	"github.com/quantfx/fxbacktester/eventhandlers/portfolio"
	"github.com/quantfx/fxbacktester/eventhandlers/risk"
	"github.com/quantfx/fxbacktester/eventhandlers/statistics"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// BackTest owns all mutable state of one plan's run. Plans share nothing,
// each worker builds its own BackTest
type BackTest struct {
	RunID     uuid.UUID
	Plan      *SimulationPlan
	Portfolio *portfolio.Portfolio
	Strategy  strategies.Handler
	Matching  matching.Engine
	Risk      risk.Handler
	Statistic *statistics.Statistic
	logger    *zap.Logger

	// lastBook holds the most recent market data event per instrument so
	// orders triggered by bookless events still have something to match
	// against
	lastBook map[string]event.Event
}

// NewBackTest assembles a plan's runtime. The planner already validated the
// strategy and exit names, parameters are bound here
func NewBackTest(plan *SimulationPlan, me config.MatchingEngine, targets []base.TargetAccount, logger *zap.Logger) (*BackTest, error) {
	bt, err := newShell(plan, me, logger)
	if err != nil {
		return nil, err
	}

	strat, err := strategies.LoadStrategyByName(plan.Strategy)
	if err != nil {
		return nil, err
	}
	if err := strat.SetCustomSettings(plan.StrategyParams); err != nil {
		return nil, err
	}
	exit, err := exits.LoadExitByName(plan.ExitName, plan.ExitParams)
	if err != nil {
		return nil, err
	}
	strat.SetExit(exit)
	strat.SetLmaxAccount(plan.LmaxAccount)
	strat.SetTargetAccounts(targets)
	bt.Strategy = strat
	return bt, nil
}

// NewBaseline assembles the no-strategy twin of a plan, used as the
// subtraction baseline of relative simulations
func NewBaseline(plan *SimulationPlan, me config.MatchingEngine, logger *zap.Logger) (*BackTest, error) {
	return newShell(plan, me, logger)
}

func newShell(plan *SimulationPlan, me config.MatchingEngine, logger *zap.Logger) (*BackTest, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfig, common.ErrNilArguments)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	stat, err := statistics.Setup(plan.Level, plan.CumulativeDaily)
	if err != nil {
		return nil, err
	}
	eng, err := buildMatchingEngine(me)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("%w: generating run id: %v", common.ErrRuntime, err)
	}
	return &BackTest{
		RunID:     id,
		Plan:      plan,
		Portfolio: portfolio.Setup(plan.Netting, plan.MatchingMethod),
		Matching:  eng,
		Risk:      riskFromParams(plan.RiskParams),
		Statistic: stat,
		lastBook:  make(map[string]event.Event),
		logger:    logger.With(zap.String("run_id", id.String()), zap.String("plan", plan.Name()), zap.Uint64("hash", plan.Hash())),
	}, nil
}

// buildMatchingEngine selects depth distribution matching when the pipeline
// carries depth tables, top of book otherwise
func buildMatchingEngine(me config.MatchingEngine) (matching.Engine, error) {
	if len(me.PipDepth) == 0 {
		return matching.NewTopOfBook(), nil
	}
	tables := matching.DepthTables{
		RelativeVolume:  make(map[int64]float64, len(me.RelativeVolume)),
		PipDepth:        me.PipDepth,
		SpreadContracts: make(map[int64]float64, len(me.SpreadContracts)),
	}
	for k, v := range me.RelativeVolume {
		pips, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: relative_volume key %q: %v", common.ErrConfig, k, err)
		}
		tables.RelativeVolume[pips] = v
	}
	for k, v := range me.SpreadContracts {
		spread, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: spread_contracts key %q: %v", common.ErrConfig, k, err)
		}
		tables.SpreadContracts[spread] = v
	}
	return matching.NewDepthDistribution(tables)
}

func riskFromParams(params map[string]any) risk.Handler {
	r := &risk.Risk{}
	if v, ok := params["max_position_size"].(float64); ok {
		r.MaxPositionSize = int64(v * float64(common.QuantityScale))
	}
	return r
}

// Run processes the input events in order. Derived fills fully drain before
// the next input event, cancellation is honoured between input events only
func (bt *BackTest) Run(ctx context.Context, events []event.Event) error {
	for i := range events {
		select {
		case <-ctx.Done():
			bt.Statistic.Reset()
			return &CancelledError{PlanHash: bt.Plan.Hash(), At: events[i].Time}
		default:
		}
		ev := &events[i]
		if ev.Instrument != "" && !bt.Plan.InUniverse(ev.Instrument) {
			continue
		}
		if !bt.Plan.Filter.Match(ev) {
			continue
		}
		if err := bt.processEvent(ev); err != nil {
			bt.Statistic.Reset()
			return fmt.Errorf("plan %016x at %v: %w", bt.Plan.Hash(), ev.Time.UTC(), err)
		}
	}
	return nil
}

func (bt *BackTest) processEvent(ev *event.Event) error {
	switch ev.Type {
	case common.TradeEvent:
		res, err := bt.Portfolio.OnTrade(ev)
		if err != nil {
			return err
		}
		if err := bt.Statistic.OnEvent(ev, res, bt.Portfolio.UnrealisedPNL()); err != nil {
			return err
		}
		if bt.Strategy == nil {
			return nil
		}
		orders, err := bt.Strategy.OnTrade(ev, bt.Portfolio)
		if err != nil {
			return err
		}
		return bt.drain(ev, orders)

	case common.MarketDataEvent:
		if err := bt.Portfolio.UpdateMarks(ev); err != nil {
			return err
		}
		bt.lastBook[ev.Instrument] = *ev
		if err := bt.Statistic.OnEvent(ev, ledger.TradeResult{}, bt.Portfolio.UnrealisedPNL()); err != nil {
			return err
		}
		if bt.Strategy == nil {
			return nil
		}
		orders, err := bt.Strategy.OnMarketData(ev, bt.Portfolio)
		if err != nil {
			return err
		}
		return bt.drain(ev, orders)

	case common.AccountMigrationEvent:
		if err := bt.Statistic.OnEvent(ev, ledger.TradeResult{}, bt.Portfolio.UnrealisedPNL()); err != nil {
			return err
		}
		if bt.Strategy == nil {
			return nil
		}
		orders, err := bt.Strategy.OnAccountMigration(ev, bt.Portfolio)
		if err != nil {
			return err
		}
		return bt.drain(ev, orders)

	default:
		// hedge and internal events only arise as derived fills
		return fmt.Errorf("%w: unexpected input event type %v", common.ErrRuntime, ev.Type)
	}
}

// drain matches the emitted orders and books their fills. Orders the risk
// handler rejects are dropped, the plan carries on
func (bt *BackTest) drain(src *event.Event, orders []order.Order) error {
	for i := range orders {
		o := orders[i]
		if !bt.Plan.InUniverse(o.Instrument) {
			return fmt.Errorf("%w: %w: %q", common.ErrRuntime, ErrOrderOutsideUniverse, o.Instrument)
		}
		if err := bt.Risk.EvaluateOrder(&o, bt.Portfolio); err != nil {
			if errors.Is(err, risk.ErrExceedsPositionLimit) {
				bt.logger.Debug("order rejected", zap.String("instrument", o.Instrument), zap.Int64("quantity", o.Quantity), zap.Error(err))
				continue
			}
			return err
		}
		matchSrc := src
		if !src.HasBook() {
			book, ok := bt.lastBook[o.Instrument]
			if !ok {
				bt.logger.Debug("order before first book, dropped", zap.String("instrument", o.Instrument), zap.Int64("quantity", o.Quantity))
				continue
			}
			book.Time = src.Time
			book.TradingSession = src.TradingSession
			matchSrc = &book
		}
		fills, err := bt.Matching.Match(matchSrc, &o)
		if err != nil {
			return err
		}
		for f := range fills {
			res, err := bt.Portfolio.OnTrade(&fills[f])
			if err != nil {
				return err
			}
			if err := bt.Statistic.OnEvent(&fills[f], res, bt.Portfolio.UnrealisedPNL()); err != nil {
				return err
			}
		}
	}
	return nil
}
