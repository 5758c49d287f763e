package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Read-only contract methods exposed as scalars.
const (
	ScalarTotalStaked    = "totalStaked"
	ScalarValidatorCount = "validatorCount"
	ScalarMessageCount   = "messageCount"
	ScalarMinimumStake   = "minimumStake"
	ScalarStakeOf        = "stakeOf"
)

// Write methods.
const (
	MethodStake       = "stake"
	MethodWithdraw    = "withdraw"
	MethodPostMessage = "postMessage"
)

// AggregateScalars are the argument-free reads collected on every poll.
func AggregateScalars() []string {
	return []string{
		ScalarTotalStaked,
		ScalarValidatorCount,
		ScalarMessageCount,
		ScalarMinimumStake,
	}
}

// IsScalar reports whether name is a view method on the contract.
func IsScalar(name string) bool {
	parsed, err := StakeBoardABI()
	if err != nil {
		return false
	}
	method, ok := parsed.Methods[name]
	return ok && method.IsConstant() && len(method.Outputs) == 1
}

// UnpackError reports a view result that does not match the contract ABI,
// usually because the address is not the staking contract.
type UnpackError struct {
	Method string
	Err    error
}

func (e *UnpackError) Error() string {
	return fmt.Sprintf("unpack %s: %v", e.Method, e.Err)
}

func (e *UnpackError) Unwrap() error {
	return e.Err
}

// Pack encodes a method call.
func Pack(method string, args ...interface{}) ([]byte, error) {
	parsed, err := StakeBoardABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// UnpackScalar decodes a single-output view result as a decimal string.
func UnpackScalar(method string, resp []byte) (string, error) {
	parsed, err := StakeBoardABI()
	if err != nil {
		return "", fmt.Errorf("parse contract abi: %w", err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return "", &UnpackError{Method: method, Err: err}
	}
	if len(values) != 1 {
		return "", fmt.Errorf("%s return size %d", method, len(values))
	}
	switch v := values[0].(type) {
	case string:
		return v, nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	case common.Address:
		return v.Hex(), nil
	default:
		n, err := asBigInt(v)
		if err != nil {
			return "", fmt.Errorf("%s: %w", method, err)
		}
		return n.String(), nil
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
