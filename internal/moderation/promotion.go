package moderation

import (
	"fmt"

	"github.com/Kerhoff/custos/internal/models"
)

// Promotion is the rank change an /upstaff request resolves to.
type Promotion struct {
	From models.Rank
	To   models.Rank
	// NeedsConfirmation is set for ownership transfers, which are never
	// applied without a second explicit step.
	NeedsConfirmation bool
}

// ResolvePromotion computes the result of moving target by delta levels on
// behalf of actor. The resulting level is capped at owner and floored at
// participant. A result of owner is never applied immediately: a non-owner
// actor is denied, an owner actor gets a confirmation-gated promotion.
func ResolvePromotion(actor, target models.Rank, delta int) (Promotion, error) {
	if !actor.Valid() || !target.Valid() {
		return Promotion{}, fmt.Errorf("%w: invalid rank", ErrInsufficientAuthority)
	}

	span := int(models.MaxRank - models.MinRank)
	delta = max(-span, min(delta, span))

	p := Promotion{From: target, To: models.RankAt(int(target) + delta)}

	if actor == models.RankAdministrator && target == models.RankOwner {
		return p, fmt.Errorf("%w: administrators cannot act on an owner", ErrInsufficientAuthority)
	}

	if p.To == p.From {
		return p, fmt.Errorf("%w: %s stays %s", ErrNoOpPromotion, target, p.To)
	}

	if p.To < p.From {
		if target == models.RankOwner {
			return p, fmt.Errorf("%w: ownership only moves by transfer", ErrInsufficientAuthority)
		}
		return p, nil
	}

	if p.To == models.RankOwner {
		if actor != models.RankOwner {
			return p, fmt.Errorf("%w: only an owner can appoint an owner", ErrInsufficientAuthority)
		}
		p.NeedsConfirmation = true
	}

	return p, nil
}
