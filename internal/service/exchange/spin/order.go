package spin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KNICEX/spin-perp/internal/metrics"
	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/samber/lo"
)

var _ exchange.OrderService = (*OrderService)(nil)

type OrderService struct {
	cli    *rpcClient
	signer Signer
}

func NewOrderService(cli *rpcClient, signer Signer) *OrderService {
	return &OrderService{cli: cli, signer: signer}
}

// GetOrders https://docs.api.spin.fi/perp/#get_orders
func (svc *OrderService) GetOrders(ctx context.Context, req exchange.GetOrdersReq) ([]exchange.Order, error) {
	var res []orderView
	err := svc.cli.view(ctx, "get_orders", map[string]any{
		"market_id":  uint64(req.MarketId),
		"account_id": req.AccountId,
	}, &res)
	if err != nil {
		return nil, err
	}
	return lo.Map(res, func(item orderView, index int) exchange.Order {
		return fromOrderView(req.MarketId, item)
	}), nil
}

// PlaceOrder https://docs.api.spin.fi/perp/#place_ask
func (svc *OrderService) PlaceOrder(ctx context.Context, req exchange.PlaceOrderReq) (exchange.OrderId, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if svc.signer == nil {
		return "", ErrReadOnly
	}

	method := "place_ask"
	if req.Side == exchange.SideBid {
		method = "place_bid"
	}
	price := req.Price
	if price == "" {
		price = "0"
	}
	args, err := json.Marshal(placeOrderArgs{
		MarketId:      uint64(req.MarketId),
		Price:         price,
		Quantity:      req.Quantity,
		MarketOrder:   req.MarketOrder,
		ClientOrderId: req.ClientOrderId,
		PostOnly:      req.PostOnly,
	})
	if err != nil {
		return "", err
	}

	raw, err := svc.signer.FunctionCall(ctx, svc.cli.contractId, method, args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	id, err := parseOrderId(raw)
	if err != nil {
		return "", fmt.Errorf("%s: decode order id: %w", method, err)
	}
	metrics.OrdersPlacedTotal.WithLabelValues(req.MarketId.ToString(), string(req.Side)).Inc()
	return id, nil
}

// CancelOrder https://docs.api.spin.fi/perp/#cancel_order
func (svc *OrderService) CancelOrder(ctx context.Context, req exchange.CancelOrderReq) error {
	if req.OrderId.IsZero() {
		return fmt.Errorf("%w: empty order id", exchange.ErrInvalidOrder)
	}
	if svc.signer == nil {
		return ErrReadOnly
	}
	args, err := json.Marshal(cancelOrderArgs{
		MarketId: uint64(req.MarketId),
		OrderId:  req.OrderId.ToString(),
	})
	if err != nil {
		return err
	}
	if _, err = svc.signer.FunctionCall(ctx, svc.cli.contractId, "cancel_order", args); err != nil {
		return fmt.Errorf("cancel_order: %w", err)
	}
	metrics.OrdersCancelledTotal.WithLabelValues(req.MarketId.ToString()).Inc()
	return nil
}
