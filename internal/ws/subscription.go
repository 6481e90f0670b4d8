package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

// DefaultCommandTimeout bounds how long a subscribe, unsubscribe, or
// update command waits for its response frame.
const DefaultCommandTimeout = 10 * time.Second

// Event is one decoded frame from a live subscription. Exactly one of
// Orderbook and Fill is set.
type Event struct {
	Orderbook  *orderbook.Message
	Fill       *model.Fill
	ReceivedAt time.Time
}

// Subscription is a live orderbook (and optionally fill) feed over a
// single websocket connection. It is single-consumer: Subscribe, Next,
// and Update must be called from one goroutine.
type Subscription struct {
	client  Client
	logger  *slog.Logger
	timeout time.Duration

	fills   bool
	tickers map[model.MarketTicker]struct{}

	cmdID   atomic.Int64
	sids    []int64
	lastSeq int64

	// frames received while waiting on a command response; drained
	// by Next before reading the connection again.
	queue []pendingFrame
}

type pendingFrame struct {
	msg        serverMessage
	receivedAt time.Time
}

// SubscriptionOption configures a Subscription.
type SubscriptionOption func(*Subscription)

// WithFills subscribes to the fill channel alongside orderbook deltas.
func WithFills() SubscriptionOption {
	return func(s *Subscription) { s.fills = true }
}

// WithSubscriptionLogger sets the logger.
func WithSubscriptionLogger(logger *slog.Logger) SubscriptionOption {
	return func(s *Subscription) { s.logger = logger }
}

// WithCommandTimeout sets the per-command response timeout.
func WithCommandTimeout(d time.Duration) SubscriptionOption {
	return func(s *Subscription) { s.timeout = d }
}

// NewSubscription builds a subscription for the given markets on an
// already connected client.
func NewSubscription(client Client, tickers []model.MarketTicker, opts ...SubscriptionOption) *Subscription {
	s := &Subscription{
		client:  client,
		logger:  slog.Default(),
		timeout: DefaultCommandTimeout,
		tickers: make(map[model.MarketTicker]struct{}, len(tickers)),
	}
	for _, t := range tickers {
		s.tickers[t] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tickers returns the currently subscribed markets, sorted.
func (s *Subscription) Tickers() []model.MarketTicker {
	out := make([]model.MarketTicker, 0, len(s.tickers))
	for t := range s.tickers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Subscription) channels() []string {
	channels := []string{ChannelOrderbookDelta}
	if s.fills {
		channels = append(channels, ChannelFill)
	}
	return channels
}

func (s *Subscription) tickerStrings() []string {
	out := make([]string, 0, len(s.tickers))
	for t := range s.tickers {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// Subscribe opens the feed. The exchange answers with one subscribed
// frame per channel; data frames arriving before the last confirmation
// are queued for Next.
func (s *Subscription) Subscribe(ctx context.Context) error {
	if len(s.tickers) == 0 {
		return fmt.Errorf("subscribe: no markets")
	}
	channels := s.channels()
	cmd := Command{
		ID:  s.cmdID.Add(1),
		Cmd: "subscribe",
		Params: SubscribeParams{
			Channels:      channels,
			MarketTickers: s.tickerStrings(),
		},
	}
	if err := s.client.Send(ctx, cmd); err != nil {
		return err
	}

	s.sids = s.sids[:0]
	for range channels {
		resp, err := s.awaitResponse(ctx, cmd.ID, TypeSubscribed)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		var sub subscribedMsg
		if err := json.Unmarshal(resp.Msg, &sub); err != nil {
			return fmt.Errorf("subscribe: decode confirmation: %w", err)
		}
		s.sids = append(s.sids, sub.SID)
		s.logger.Info("subscribed", "channel", sub.Channel, "sid", sub.SID, "markets", len(s.tickers))
	}
	return nil
}

// Next returns the next event from the feed. A sequence gap drops the
// subscription and re-establishes it before continuing.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		frame, ok := s.popQueued()
		if !ok {
			var err error
			frame, err = s.readFrame(ctx, nil)
			if err != nil {
				return Event{}, err
			}
		}

		if frame.msg.isResponse() {
			s.logger.Warn("unexpected command response", "type", frame.msg.Type, "id", frame.msg.ID)
			continue
		}
		if frame.msg.hasSeq() && !s.seqValid(frame.msg.Seq) {
			s.logger.Warn("sequence gap, resubscribing",
				"expected", s.lastSeq+1, "got", frame.msg.Seq)
			if err := s.resubscribe(ctx); err != nil {
				return Event{}, err
			}
			continue
		}

		ev, ok, err := decodeEvent(frame)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "type", frame.msg.Type, "error", err)
			continue
		}
		if !ok {
			continue
		}
		return ev, nil
	}
}

// Update changes the market set of the live subscription, removing
// dropped markets before adding new ones.
func (s *Subscription) Update(ctx context.Context, tickers []model.MarketTicker) error {
	if len(s.sids) == 0 {
		return fmt.Errorf("update subscription: not subscribed")
	}
	next := make(map[model.MarketTicker]struct{}, len(tickers))
	for _, t := range tickers {
		next[t] = struct{}{}
	}

	var added, removed []string
	for t := range next {
		if _, ok := s.tickers[t]; !ok {
			added = append(added, string(t))
		}
	}
	for t := range s.tickers {
		if _, ok := next[t]; !ok {
			removed = append(removed, string(t))
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	if len(removed) > 0 {
		if err := s.sendUpdate(ctx, ActionDeleteMarkets, removed); err != nil {
			return err
		}
	}
	if len(added) > 0 {
		if err := s.sendUpdate(ctx, ActionAddMarkets, added); err != nil {
			return err
		}
	}
	s.tickers = next
	if len(added)+len(removed) > 0 {
		s.logger.Info("subscription updated", "added", len(added), "removed", len(removed), "markets", len(next))
	}
	return nil
}

func (s *Subscription) sendUpdate(ctx context.Context, action string, tickers []string) error {
	cmd := Command{
		ID:  s.cmdID.Add(1),
		Cmd: "update_subscription",
		Params: UpdateSubscriptionParams{
			SIDs:          s.sids,
			Action:        action,
			MarketTickers: tickers,
		},
	}
	if err := s.client.Send(ctx, cmd); err != nil {
		return err
	}
	if _, err := s.awaitResponse(ctx, cmd.ID, TypeSubscriptionUpdated); err != nil {
		return fmt.Errorf("update subscription (%s): %w", action, err)
	}
	return nil
}

// resubscribe tears the current subscription down and starts over:
// queued frames and the sequence position belong to the dead stream.
func (s *Subscription) resubscribe(ctx context.Context) error {
	s.queue = s.queue[:0]
	s.lastSeq = 0

	if len(s.sids) > 0 {
		cmd := Command{
			ID:     s.cmdID.Add(1),
			Cmd:    "unsubscribe",
			Params: UnsubscribeParams{SIDs: s.sids},
		}
		if err := s.client.Send(ctx, cmd); err != nil {
			return err
		}
		if _, err := s.awaitResponse(ctx, cmd.ID, TypeUnsubscribed); err != nil {
			return fmt.Errorf("unsubscribe: %w", err)
		}
		// frames queued while waiting for the unsubscribe ack are
		// still from the dead stream
		s.queue = s.queue[:0]
		s.sids = s.sids[:0]
	}
	return s.Subscribe(ctx)
}

func (s *Subscription) popQueued() (pendingFrame, bool) {
	if len(s.queue) == 0 {
		return pendingFrame{}, false
	}
	frame := s.queue[0]
	s.queue = s.queue[1:]
	return frame, true
}

// awaitResponse reads frames until the response to cmdID arrives,
// queueing data frames for Next.
func (s *Subscription) awaitResponse(ctx context.Context, cmdID int64, wantType string) (serverMessage, error) {
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	for {
		frame, err := s.readFrame(ctx, deadline.C)
		if err != nil {
			return serverMessage{}, err
		}
		if !frame.msg.isResponse() || frame.msg.ID != cmdID {
			s.queue = append(s.queue, frame)
			continue
		}
		if frame.msg.Type == TypeError {
			var em errorMsg
			_ = json.Unmarshal(frame.msg.Msg, &em)
			return serverMessage{}, fmt.Errorf("exchange error %d: %s", em.Code, em.Message)
		}
		if frame.msg.Type != wantType {
			return serverMessage{}, fmt.Errorf("unexpected response type %q (want %q)", frame.msg.Type, wantType)
		}
		return frame.msg, nil
	}
}

func (s *Subscription) readFrame(ctx context.Context, timeout <-chan time.Time) (pendingFrame, error) {
	select {
	case <-ctx.Done():
		return pendingFrame{}, ctx.Err()
	case <-timeout:
		return pendingFrame{}, ErrTimeout
	case err := <-s.client.Errors():
		return pendingFrame{}, err
	case raw, ok := <-s.client.Messages():
		if !ok {
			return pendingFrame{}, ErrNotConnected
		}
		var msg serverMessage
		if err := json.Unmarshal(raw.Data, &msg); err != nil {
			return pendingFrame{}, fmt.Errorf("decode frame: %w", err)
		}
		return pendingFrame{msg: msg, receivedAt: raw.ReceivedAt}, nil
	}
}

// seqValid accepts the first sequenced frame unconditionally and every
// later one only if it directly follows the previous.
func (s *Subscription) seqValid(seq int64) bool {
	if s.lastSeq == 0 || seq == s.lastSeq+1 {
		s.lastSeq = seq
		return true
	}
	return false
}

func decodeEvent(frame pendingFrame) (Event, bool, error) {
	switch frame.msg.Type {
	case TypeOrderbookSnapshot:
		var body orderbookSnapshotMsg
		if err := json.Unmarshal(frame.msg.Msg, &body); err != nil {
			return Event{}, false, err
		}
		snap := orderbook.Snapshot{
			Ticker: model.MarketTicker(body.MarketTicker),
			Yes:    toLevels(body.Yes),
			No:     toLevels(body.No),
			TS:     frame.receivedAt,
			Seq:    frame.msg.Seq,
		}
		return Event{
			Orderbook:  &orderbook.Message{Snapshot: &snap},
			ReceivedAt: frame.receivedAt,
		}, true, nil

	case TypeOrderbookDelta:
		var body orderbookDeltaMsg
		if err := json.Unmarshal(frame.msg.Msg, &body); err != nil {
			return Event{}, false, err
		}
		side, err := model.ParseSide(body.Side)
		if err != nil {
			return Event{}, false, err
		}
		delta := orderbook.Delta{
			Ticker: model.MarketTicker(body.MarketTicker),
			Side:   side,
			Price:  model.Price(body.Price),
			Change: body.Delta,
			TS:     frame.receivedAt,
			Seq:    frame.msg.Seq,
		}
		return Event{
			Orderbook:  &orderbook.Message{Delta: &delta},
			ReceivedAt: frame.receivedAt,
		}, true, nil

	case TypeFill:
		var body fillMsg
		if err := json.Unmarshal(frame.msg.Msg, &body); err != nil {
			return Event{}, false, err
		}
		fill, err := body.toModel()
		if err != nil {
			return Event{}, false, err
		}
		return Event{Fill: fill, ReceivedAt: frame.receivedAt}, true, nil
	}
	return Event{}, false, nil
}

func (m fillMsg) toModel() (*model.Fill, error) {
	fillID, err := uuid.Parse(m.FillID)
	if err != nil {
		return nil, fmt.Errorf("fill id: %w", err)
	}
	orderID, err := uuid.Parse(m.OrderID)
	if err != nil {
		return nil, fmt.Errorf("order id: %w", err)
	}
	side, err := model.ParseSide(m.Side)
	if err != nil {
		return nil, err
	}
	return &model.Fill{
		Ticker:      model.MarketTicker(m.MarketTicker),
		FillID:      fillID,
		OrderID:     orderID,
		Side:        side,
		Action:      model.TradeAction(m.Action),
		YesPrice:    model.Price(m.YesPrice),
		NoPrice:     model.Price(m.NoPrice),
		Count:       model.Quantity(m.Count),
		IsTaker:     m.IsTaker,
		CreatedTime: time.Unix(m.TS, 0).UTC(),
	}, nil
}

func toLevels(pairs [][]int) []orderbook.Level {
	levels := make([]orderbook.Level, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		levels = append(levels, orderbook.Level{
			Price:    model.Price(p[0]),
			Quantity: model.Quantity(p[1]),
		})
	}
	return levels
}
