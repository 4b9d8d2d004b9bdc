package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/seesaw/internal/data"
	"github.com/songzhibin97/seesaw/internal/models"
	"github.com/songzhibin97/seesaw/internal/trading"
)

// Params 策略参数
type Params struct {
	CounterCurrencyBudget decimal.Decimal // 每次买入花费的计价货币数量
	MinimumGainFraction   decimal.Decimal // 卖出价相对买入价的最小涨幅, eg: 0.02
}

func (p Params) Validate() error {
	if !p.CounterCurrencyBudget.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositiveBudget, p.CounterCurrencyBudget)
	}
	if p.MinimumGainFraction.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeGain, p.MinimumGainFraction)
	}
	return nil
}

// Phase is the position of an engine in the BUY/SELL alternation.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseAwaitingBuyFill
	PhaseAwaitingSellFill
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingBuyFill:
		return "AWAITING_BUY_FILL"
	case PhaseAwaitingSellFill:
		return "AWAITING_SELL_FILL"
	default:
		return "UNINITIALIZED"
	}
}

// State is a snapshot of an engine's decision state.
type State struct {
	LastOrder *models.OrderRecord

	// Round counts cycles for logging only. It advances on holds and on
	// recoverable faults too, so it is not part of the decision state:
	// a cycle that submits nothing leaves LastOrder unchanged, not Round.
	Round int64

	// Unjournaled is the number of accepted orders not yet saved to the journal.
	Unjournaled int
}

func (s State) Phase() Phase {
	switch {
	case s.LastOrder == nil:
		return PhaseUninitialized
	case s.LastOrder.Side == models.SideBuy:
		return PhaseAwaitingBuyFill
	default:
		return PhaseAwaitingSellFill
	}
}

type ActionKind int

const (
	ActionNoOp ActionKind = iota
	ActionSubmitBuy
	ActionSubmitSell
)

func (k ActionKind) String() string {
	switch k {
	case ActionSubmitBuy:
		return "submit_buy"
	case ActionSubmitSell:
		return "submit_sell"
	default:
		return "no_op"
	}
}

// HoldReason explains a no-op cycle.
type HoldReason string

const (
	HoldEmptyBook         HoldReason = "empty_order_book"
	HoldAwaitingBuyFill   HoldReason = "awaiting_buy_fill"
	HoldAskBelowSellPrice HoldReason = "ask_below_sell_price"
	HoldAskAtSellPrice    HoldReason = "ask_at_sell_price"
	// HoldAskAboveSellPrice: the sell order is reported open although the
	// market asks more than it. Exchanges should have filled it.
	HoldAskAboveSellPrice HoldReason = "ask_above_sell_price"
)

// Action is the outcome of one cycle.
type Action struct {
	Kind  ActionKind
	Order models.OrderRecord // submitted order, zero for no-ops
	Hold  HoldReason         // why nothing was submitted
	Book  models.OrderBookSnapshot
}

func (a Action) Submitted() bool { return a.Kind != ActionNoOp }

// Anomaly reports the open-sell-below-market condition.
func (a Action) Anomaly() bool { return a.Hold == HoldAskAboveSellPrice }

func (a Action) String() string {
	if a.Submitted() {
		return fmt.Sprintf("%s id=%s price=%s amount=%s", a.Kind, a.Order.ID, a.Order.Price, a.Order.Amount)
	}
	return fmt.Sprintf("%s reason=%s", a.Kind, a.Hold)
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithJournal appends every recorded order to store.
func WithJournal(store data.OrderStore) Option {
	return func(e *Engine) { e.journal = store }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine alternates limit BUY and SELL orders on one market. A BUY spends a
// fixed counter currency budget at the best bid; once it fills, a SELL for
// the same amount is placed at the buy price plus the minimum gain; once that
// fills, the loop starts again.
//
// Engine is not safe for concurrent use. Each market gets its own engine.
type Engine struct {
	market  models.Market
	api     trading.TradingAPI
	params  Params
	tracker *OrderTracker
	journal data.OrderStore
	pending []models.OrderRecord // 已被交易所接受但未写入 journal
	round   int64
	logger  *slog.Logger
	now     func() time.Time
}

func NewEngine(market models.Market, api trading.TradingAPI, params Params, opts ...Option) (*Engine, error) {
	if market.ID == "" {
		return nil, fmt.Errorf("market id is required")
	}
	if api == nil {
		return nil, fmt.Errorf("trading api is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if market.Name == "" {
		market.Name = market.ID
	}

	e := &Engine{
		market:  market,
		api:     api,
		params:  params,
		tracker: NewOrderTracker(),
		round:   1,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("market", market.Name)

	if params.MinimumGainFraction.IsZero() {
		e.logger.Warn("minimum gain fraction is zero, sell orders will break even")
	}
	return e, nil
}

// Market returns the market traded by the engine.
func (e *Engine) Market() models.Market { return e.market }

// State returns the current decision state.
func (e *Engine) State() State {
	s := State{Round: e.round, Unjournaled: len(e.pending)}
	if last, ok := e.tracker.Current(); ok {
		s.LastOrder = &last
	}
	return s
}

// Restore replays previously placed orders, oldest first, so the engine
// resumes from the last one. It must be called before the first cycle.
func (e *Engine) Restore(orders []models.OrderRecord) error {
	for _, o := range orders {
		if o.MarketID != "" && o.MarketID != e.market.ID {
			return fmt.Errorf("restore: order %s belongs to market %s", o.ID, o.MarketID)
		}
		if err := e.tracker.Record(o); err != nil {
			return e.fault(FaultInvariant, "restore", err)
		}
	}
	if last, ok := e.tracker.Current(); ok {
		e.logger.Info("restored order history", "orders", e.tracker.Len(), "last_order", last.String())
	}
	return nil
}

// Reconcile compares the restored history with the orders still open on the
// exchange. An open order the history does not know means an accepted order
// was never journaled; the market then needs manual reconciliation and a
// fatal FaultInvariant is returned. Call it after Restore, before the first cycle.
func (e *Engine) Reconcile(ctx context.Context) error {
	open, err := e.api.FetchOpenOrders(ctx, e.market.ID)
	if err != nil {
		return e.fault(classify(err), "reconcile", err)
	}

	for _, o := range open {
		if _, ok := e.tracker.Lookup(o.ID); ok {
			continue
		}
		e.logger.Error("exchange has an open order missing from the order history, manual reconciliation required",
			"order_id", o.ID,
			"side", o.Side,
			"price", o.Price.StringFixed(Scale))
		return e.fault(FaultInvariant, "reconcile", fmt.Errorf("%w: %s", ErrUntrackedOrder, o.ID))
	}
	return nil
}

// RunCycle runs one decision cycle. A *Fault is returned when the cycle
// fails; see Fault.Recoverable. The tracked state only changes after the
// exchange accepted a new order.
func (e *Engine) RunCycle(ctx context.Context) (Action, error) {
	e.logger.Info("running strategy cycle", "round", e.round)
	e.flushJournal(ctx)

	book, err := e.api.FetchOrderBook(ctx, e.market.ID)
	if err != nil {
		return e.finish(Action{}, e.fault(classify(err), "fetch order book", err))
	}

	snap, ok := book.Snapshot()
	if !ok {
		e.logger.Warn("exchange returned an empty side of the order book, ignoring this trade window",
			"bids", len(book.Bids), "asks", len(book.Asks))
		return Action{Kind: ActionNoOp, Hold: HoldEmptyBook}, nil
	}

	e.logger.Info("current spot prices",
		"best_bid", snap.BestBid.StringFixed(Scale),
		"best_ask", snap.BestAsk.StringFixed(Scale))

	last, ok := e.tracker.Current()
	switch {
	case !ok:
		e.logger.Info("first time order, placing new BUY order", "price", snap.BestBid.StringFixed(Scale))
		return e.finish(e.placeBuy(ctx, snap))
	case last.Side == models.SideBuy:
		return e.finish(e.afterBuy(ctx, snap, last))
	default:
		return e.finish(e.afterSell(ctx, snap, last))
	}
}

func (e *Engine) finish(action Action, err error) (Action, error) {
	if err != nil {
		if IsFatal(err) {
			e.logger.Error("strategy fault, market must stop trading", "err", err)
			return action, err
		}
		e.logger.Error("exchange unreachable, waiting until next trade cycle", "err", err)
	}
	e.round++
	return action, err
}

// afterBuy handles a cycle whose last order was a BUY.
func (e *Engine) afterBuy(ctx context.Context, snap models.OrderBookSnapshot, last models.OrderRecord) (Action, error) {
	sellPrice, err := SellPriceFor(last.Price, e.params.MinimumGainFraction)
	if err != nil {
		return Action{}, e.fault(FaultInvalidInput, "compute sell price", err)
	}

	filled, err := e.lastOrderFilled(ctx, last)
	if err != nil {
		return Action{}, err
	}

	if !filled {
		e.logger.Info("still have BUY order waiting to fill, holding last BUY order",
			"order_id", last.ID,
			"price", last.Price.StringFixed(Scale),
			"best_ask", snap.BestAsk.StringFixed(Scale),
			"target_sell_price", sellPrice.StringFixed(Scale),
			"ask_vs_target", snap.BestAsk.Cmp(sellPrice))
		return Action{Kind: ActionNoOp, Hold: HoldAwaitingBuyFill, Book: snap}, nil
	}

	e.logger.Info("last BUY order filled",
		"order_id", last.ID,
		"price", last.Price.StringFixed(Scale),
		"minimum_gain_fraction", e.params.MinimumGainFraction.String(),
		"amount_to_add", last.Price.Mul(e.params.MinimumGainFraction).String())
	e.logger.Info("placing new SELL order", "ask_price", sellPrice.StringFixed(Scale))

	return e.submit(ctx, snap, models.SideSell, last.Amount, sellPrice)
}

// afterSell handles a cycle whose last order was a SELL.
func (e *Engine) afterSell(ctx context.Context, snap models.OrderBookSnapshot, last models.OrderRecord) (Action, error) {
	filled, err := e.lastOrderFilled(ctx, last)
	if err != nil {
		return Action{}, err
	}

	if filled {
		e.logger.Info("last SELL order filled", "order_id", last.ID, "price", last.Price.StringFixed(Scale))
		return e.placeBuy(ctx, snap)
	}

	action := Action{Kind: ActionNoOp, Book: snap}
	attrs := []any{
		"order_id", last.ID,
		"best_ask", snap.BestAsk.StringFixed(Scale),
		"sell_price", last.Price.StringFixed(Scale),
	}
	switch snap.BestAsk.Cmp(last.Price) {
	case -1:
		action.Hold = HoldAskBelowSellPrice
		e.logger.Info("current ask is lower than last SELL order price, holding last SELL order", attrs...)
	case 1:
		action.Hold = HoldAskAboveSellPrice
		e.logger.Error("current ask is higher than last SELL order price, order should have been filled", attrs...)
	default:
		action.Hold = HoldAskAtSellPrice
		e.logger.Info("current ask equals last SELL order price, holding last SELL order", attrs...)
	}
	return action, nil
}

// placeBuy sends a BUY at the best bid sized against the fixed budget.
func (e *Engine) placeBuy(ctx context.Context, snap models.OrderBookSnapshot) (Action, error) {
	if err := e.tracker.CheckNext(models.SideBuy); err != nil {
		return Action{}, e.fault(FaultInvariant, "place buy", err)
	}
	if !snap.BestBid.IsPositive() {
		return Action{}, e.fault(FaultInvalidInput, "place buy",
			fmt.Errorf("%w: best bid %s", ErrNonPositivePrice, snap.BestBid))
	}

	amount, err := e.buyAmount(ctx)
	if err != nil {
		return Action{}, err
	}
	return e.submit(ctx, snap, models.SideBuy, amount, snap.BestBid)
}

func (e *Engine) buyAmount(ctx context.Context) (decimal.Decimal, error) {
	e.logger.Info("calculating amount of base currency to buy",
		"base_currency", e.market.BaseCurrency,
		"counter_amount", e.params.CounterCurrencyBudget.String(),
		"counter_currency", e.market.CounterCurrency)

	lastPrice, err := e.api.FetchLatestTradePrice(ctx, e.market.ID)
	if err != nil {
		return decimal.Zero, e.fault(classify(err), "fetch latest trade price", err)
	}

	amount, err := BaseAmountFor(e.params.CounterCurrencyBudget, lastPrice)
	if err != nil {
		return decimal.Zero, e.fault(FaultInvalidInput, "compute buy amount", err)
	}

	e.logger.Info("amount of base currency to BUY based on last market trade price",
		"last_trade_price", lastPrice.StringFixed(Scale),
		"amount", amount.StringFixed(Scale))
	return amount, nil
}

func (e *Engine) submit(ctx context.Context, snap models.OrderBookSnapshot, side models.OrderSide, amount, price decimal.Decimal) (Action, error) {
	if err := e.tracker.CheckNext(side); err != nil {
		return Action{}, e.fault(FaultInvariant, "submit order", err)
	}

	e.logger.Info("sending order to exchange", "side", side, "amount", amount.String(), "price", price.String())

	id, err := e.api.SubmitOrder(ctx, trading.SubmitOrderRequest{
		MarketID: e.market.ID,
		Side:     side,
		Amount:   amount,
		Price:    price,
	})
	if err != nil {
		return Action{}, e.fault(classify(err), "submit order", err)
	}

	order := models.OrderRecord{
		ID:        id,
		MarketID:  e.market.ID,
		Side:      side,
		Price:     price,
		Amount:    amount,
		CreatedAt: e.now().UTC(),
	}
	if err := e.tracker.Record(order); err != nil {
		return Action{}, e.fault(FaultInvariant, "record order", err)
	}
	e.logger.Info("order sent successfully", "side", side, "order_id", id)

	if e.journal != nil {
		e.pending = append(e.pending, order)
		e.flushJournal(ctx)
	}

	kind := ActionSubmitBuy
	if side == models.SideSell {
		kind = ActionSubmitSell
	}
	return Action{Kind: kind, Order: order, Book: snap}, nil
}

// flushJournal saves pending orders oldest first; whatever fails stays
// pending and is retried on the next cycle.
func (e *Engine) flushJournal(ctx context.Context) {
	for len(e.pending) > 0 {
		order := e.pending[0]
		err := e.journal.SaveOrder(ctx, order)
		if err != nil && !errors.Is(err, data.ErrOrderExists) {
			e.logger.Error("failed to journal order, will retry next cycle",
				"order_id", order.ID, "pending", len(e.pending), "err", err)
			return
		}
		e.pending = e.pending[1:]
	}
}

func (e *Engine) lastOrderFilled(ctx context.Context, last models.OrderRecord) (bool, error) {
	open, err := e.api.FetchOpenOrders(ctx, e.market.ID)
	if err != nil {
		return false, e.fault(classify(err), "fetch open orders", err)
	}
	return IsFilled(last.ID, OpenOrderSetOf(open)), nil
}

func (e *Engine) fault(kind FaultKind, op string, err error) *Fault {
	return &Fault{Kind: kind, MarketID: e.market.ID, Op: op, Err: err}
}
