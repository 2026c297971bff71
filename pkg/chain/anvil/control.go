package anvil

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// applyAlloc writes alloc into the running chain with anvil's state cheat codes.
func applyAlloc(ctx context.Context, client *rpc.Client, alloc types.GenesisAlloc) error {
	for addr, acct := range alloc {
		if acct.Balance != nil {
			if err := client.CallContext(ctx, nil, "anvil_setBalance", addr, hexutil.EncodeBig(acct.Balance)); err != nil {
				return fmt.Errorf("setting balance of %s: %w", addr, err)
			}
		}
		if len(acct.Code) > 0 {
			if err := client.CallContext(ctx, nil, "anvil_setCode", addr, hexutil.Bytes(acct.Code)); err != nil {
				return fmt.Errorf("setting code of %s: %w", addr, err)
			}
		}
		if acct.Nonce > 0 {
			if err := client.CallContext(ctx, nil, "anvil_setNonce", addr, hexutil.Uint64(acct.Nonce)); err != nil {
				return fmt.Errorf("setting nonce of %s: %w", addr, err)
			}
		}
		for slot, value := range acct.Storage {
			if err := client.CallContext(ctx, nil, "anvil_setStorageAt", addr, slot, value); err != nil {
				return fmt.Errorf("setting storage of %s: %w", addr, err)
			}
		}
	}
	return nil
}
