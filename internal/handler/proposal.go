package handler

import (
	"context"
	"encoding/json"

	"aclchain/internal/state"
	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

// proposeHandler returns the handler opening a proposal of the given kind and
// direction. The algorithm is shared across all seven kinds; only the
// addresses and authorization predicates vary.
func proposeHandler(kind relationshipKind, removal bool) HandlerFunc {
	return func(ctx context.Context, signer string, content []byte, sc *state.Context) error {
		var msg domain.ProposeMessage
		if err := json.Unmarshal(content, &msg); err != nil {
			return domain.Invalidf("malformed propose content: %v", err)
		}
		if msg.ProposalID == "" {
			return domain.Invalidf("proposal id required")
		}

		if err := kind.checkObject(ctx, sc, msg.ObjectID); err != nil {
			return err
		}
		if err := kind.checkRelated(ctx, sc, msg.RelatedID); err != nil {
			return err
		}
		if err := kind.proposeAuth(ctx, sc, signer, msg.ObjectID, msg.RelatedID); err != nil {
			return err
		}

		held, err := kind.inRelationship(ctx, sc, msg.ObjectID, msg.RelatedID)
		if err != nil {
			return err
		}
		if removal && !held {
			return domain.Invalidf("%s %s does not hold the %s relationship for %s",
				kind.relatedEntity, msg.RelatedID, kind.label, msg.ObjectID)
		}
		if !removal && held {
			return domain.Invalidf("%s %s already holds the %s relationship for %s",
				kind.relatedEntity, msg.RelatedID, kind.label, msg.ObjectID)
		}

		addr := addressing.Proposal(msg.ObjectID, msg.RelatedID)
		container, err := sc.FetchProposals(ctx, addr)
		if err != nil {
			return err
		}
		typ := kind.proposalType(removal)
		if _, open := container.OpenProposal(msg.ObjectID, msg.RelatedID, typ); open {
			return domain.Invalidf("there is already an open proposal of type %s for %s and %s",
				typ, msg.ObjectID, msg.RelatedID)
		}

		container.Proposals = append(container.Proposals, domain.Proposal{
			ProposalID: msg.ProposalID,
			Type:       typ,
			ObjectID:   msg.ObjectID,
			RelatedID:  msg.RelatedID,
			Opener:     signer,
			Status:     domain.ProposalOpen,
			OpenReason: msg.Reason,
			Metadata:   msg.Metadata,
		})
		return sc.StoreProposals(addr, container)
	}
}

// closeProposal runs the shared confirm/reject preconditions and returns the
// proposal container, the addressed proposal's index, and its address.
func closeProposal(ctx context.Context, kind relationshipKind, removal bool, sc *state.Context, signer string, msg domain.CloseMessage) (domain.ProposalContainer, int, string, error) {
	addr := addressing.Proposal(msg.ObjectID, msg.RelatedID)
	container, err := sc.FetchProposals(ctx, addr)
	if err != nil {
		return domain.ProposalContainer{}, 0, "", err
	}
	proposal, idx, found := container.FindProposal(msg.ProposalID, msg.ObjectID, msg.RelatedID)
	if !found {
		return domain.ProposalContainer{}, 0, "", domain.Invalidf("proposal %s not found for %s and %s",
			msg.ProposalID, msg.ObjectID, msg.RelatedID)
	}
	if proposal.Status != domain.ProposalOpen {
		return domain.ProposalContainer{}, 0, "", domain.Invalidf("proposal %s must be open, is %s",
			msg.ProposalID, proposal.Status)
	}
	if typ := kind.proposalType(removal); proposal.Type != typ {
		return domain.ProposalContainer{}, 0, "", domain.Invalidf("proposal %s has type %s, expected %s",
			msg.ProposalID, proposal.Type, typ)
	}
	if err := kind.closeAuth(ctx, sc, signer, msg.ObjectID, msg.RelatedID); err != nil {
		return domain.ProposalContainer{}, 0, "", err
	}
	return container, idx, addr, nil
}

// confirmHandler returns the handler confirming a proposal: the proposal
// moves to its terminal CONFIRMED state and the relationship effect applies
// in the same transaction.
func confirmHandler(kind relationshipKind, removal bool) HandlerFunc {
	return func(ctx context.Context, signer string, content []byte, sc *state.Context) error {
		var msg domain.CloseMessage
		if err := json.Unmarshal(content, &msg); err != nil {
			return domain.Invalidf("malformed confirm content: %v", err)
		}

		container, idx, addr, err := closeProposal(ctx, kind, removal, sc, signer, msg)
		if err != nil {
			return err
		}
		container.Proposals[idx].Status = domain.ProposalConfirmed
		container.Proposals[idx].Closer = signer
		container.Proposals[idx].CloseReason = msg.Reason
		if err := sc.StoreProposals(addr, container); err != nil {
			return err
		}

		if removal {
			return kind.applyRemove(ctx, sc, msg.ObjectID, msg.RelatedID)
		}
		return kind.applyAdd(ctx, sc, msg.ObjectID, msg.RelatedID)
	}
}

// rejectHandler returns the handler rejecting a proposal: same preconditions
// and closing authority as confirm, but the relationship is left untouched.
func rejectHandler(kind relationshipKind, removal bool) HandlerFunc {
	return func(ctx context.Context, signer string, content []byte, sc *state.Context) error {
		var msg domain.CloseMessage
		if err := json.Unmarshal(content, &msg); err != nil {
			return domain.Invalidf("malformed reject content: %v", err)
		}

		container, idx, addr, err := closeProposal(ctx, kind, removal, sc, signer, msg)
		if err != nil {
			return err
		}
		container.Proposals[idx].Status = domain.ProposalRejected
		container.Proposals[idx].Closer = signer
		container.Proposals[idx].CloseReason = msg.Reason
		return sc.StoreProposals(addr, container)
	}
}
