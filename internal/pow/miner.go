package pow

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/astram-chain/astram/internal/dag"
	"github.com/astram-chain/astram/pkg/block"
)

// ErrCancelled is returned by Seal when its context is cancelled before a
// satisfying nonce is found.
var ErrCancelled = errors.New("pow: mining cancelled")

// yieldEvery bounds how many nonce attempts run between cooperative
// cancellation checks (spec.md §5: "at least once per 10^5 attempts").
const yieldEvery = 100_000

// Seal searches header.Nonce starting at 0 until the PoW hash meets the
// header's own difficulty target, writing the winning nonce into header.
// It polls ctx at least once every yieldEvery attempts and returns
// ErrCancelled promptly once ctx is done, per the cooperative-cancellation
// model of spec.md §5 and §9 (no OS thread cancellation).
func Seal(ctx context.Context, header *block.Header, ds *dag.Dataset) error {
	leadingZeros := LeadingZeros(header.Difficulty)
	for nonce := uint64(0); ; nonce++ {
		if nonce%yieldEvery == 0 {
			select {
			case <-ctx.Done():
				return ErrCancelled
			default:
			}
		}
		digest := Hash(header, nonce, ds)
		if MeetsTarget(hex.EncodeToString(digest[:]), leadingZeros) {
			header.Nonce = nonce
			return nil
		}
		if nonce == ^uint64(0) {
			return errors.New("pow: nonce space exhausted")
		}
	}
}
