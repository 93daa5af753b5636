package spin

import (
	"context"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
)

var _ exchange.PositionService = (*PositionService)(nil)

type PositionService struct {
	cli *rpcClient
}

func NewPositionService(cli *rpcClient) *PositionService {
	return &PositionService{cli: cli}
}

// GetPositions https://docs.api.spin.fi/perp/#check_position
func (s *PositionService) GetPositions(ctx context.Context, accountId string) (exchange.Positions, error) {
	var res positionsView
	if err := s.cli.view(ctx, "get_positions", map[string]any{"account_id": accountId}, &res); err != nil {
		return exchange.Positions{}, err
	}
	return fromPositionsView(res), nil
}
