package resolver

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/tier"
)

// CheckResults enforces the exactly-one-result contract and returns the
// single result.
func CheckResults(r Resolution) (Result, error) {
	if len(r.Results) != 1 {
		return Result{}, ido.NewUnexpectedResultCount(len(r.Results))
	}
	return r.Results[0], nil
}

// DecodeStake validates a Resolution and decodes its stake.
//
// Errors:
//   - UNEXPECTED_RESULT_COUNT: not exactly one result
//   - EXTERNAL_CALL_FAILED: the result reports failure or is unreadable
func DecodeStake(r Resolution) (tier.Stake, error) {
	res, err := CheckResults(r)
	if err != nil {
		return tier.Stake{}, err
	}
	if !res.Success {
		msg := "staking query failed"
		if res.Error != "" {
			msg = fmt.Sprintf("staking query failed: %s", res.Error)
		}
		return tier.Stake{}, ido.NewExternalCallFailed(msg)
	}

	var info StakeInfo
	if err := json.Unmarshal(res.Payload, &info); err != nil {
		return tier.Stake{}, ido.NewExternalCallFailed(fmt.Sprintf("decode stake info: %v", err))
	}
	stake, err := info.Stake()
	if err != nil {
		return tier.Stake{}, ido.NewExternalCallFailed(fmt.Sprintf("decode stake info: %v", err))
	}
	return stake, nil
}
