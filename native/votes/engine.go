package votes

import (
	"strings"
	"time"

	"trustmesh/native/directory"
	"trustmesh/native/graph"
	"trustmesh/native/ledger"

	"github.com/google/uuid"
)

// Intake validates vote and endorsement submissions and turns accepted ones
// into Vote/Endorsement records plus TrustEdges.
type Intake struct {
	store    Store
	ledger   *ledger.Ledger
	graph    *graph.Graph
	registry *directory.Registry
	nowFn    func() time.Time
}

// NewIntake constructs an intake engine wired to its collaborators.
func NewIntake(store Store, l *ledger.Ledger, g *graph.Graph, registry *directory.Registry) *Intake {
	return &Intake{store: store, ledger: l, graph: g, registry: registry, nowFn: time.Now}
}

// SetNowFunc overrides the wall clock used for submission timestamps.
func (in *Intake) SetNowFunc(now func() time.Time) {
	if in == nil {
		return
	}
	if now == nil {
		in.nowFn = time.Now
		return
	}
	in.nowFn = now
}

func (in *Intake) now() time.Time {
	if in == nil || in.nowFn == nil {
		return time.Now()
	}
	return in.nowFn()
}

// SubmitVote validates and persists a payment-gated vote.
//
// Validation order: voter and subject are distinct registered agents;
// receipt exists and vote_cast is false; voter/subject addresses match the
// receipt's two parties; each quality axis is in [0,100]. On success the
// Vote is inserted, the receipt's vote_cast flag flips atomically, and a
// vote-typed TrustEdge is emitted.
func (in *Intake) SubmitVote(receiptID [32]byte, voterAddress, subjectAddress string, polarity Polarity, quality QualityScores, commentHash string) (*Vote, error) {
	if in == nil || in.store == nil || in.ledger == nil || in.graph == nil || in.registry == nil {
		return nil, ErrReceiptNotFound
	}

	voter, err := in.registry.Resolve(voterAddress)
	if err != nil {
		return nil, ErrUnknownAgent
	}
	subject, err := in.registry.Resolve(subjectAddress)
	if err != nil {
		return nil, ErrUnknownAgent
	}
	if voter.AgentID == subject.AgentID {
		return nil, ErrSameAgent
	}
	if !quality.InRange() {
		return nil, ErrInvalidRange
	}

	receipt, ok, err := in.ledger.ReceiptByID(receiptID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReceiptNotFound
	}
	if receipt.VoteCast {
		return nil, ErrReceiptAlreadyUsed
	}

	parties := map[string]bool{receipt.Payer: true, receipt.Payee: true}
	if !parties[voter.Address] || !parties[subject.Address] || voter.Address == subject.Address {
		return nil, ErrPartiesMismatch
	}

	if err := in.ledger.MarkVoteCast(receiptID); err != nil {
		return nil, err
	}

	vote := &Vote{
		ReceiptID:   receiptID,
		Voter:       voter.AgentID,
		Subject:     subject.AgentID,
		Polarity:    polarity,
		Quality:     quality,
		CommentHash: strings.TrimSpace(commentHash),
		Weight:      VoteEdgeWeight(polarity, quality),
		Timestamp:   in.now(),
	}
	if err := in.store.PutVote(vote); err != nil {
		return nil, err
	}

	weight := VoteEdgeWeight(polarity, quality)
	categories := QualityCategories(quality)
	if _, _, err := in.graph.Upsert(voter.AgentID, subject.AgentID, graph.EdgeVote, weight, categories, voteSourceRef(receiptID)); err != nil {
		return nil, err
	}

	return vote, nil
}

// SubmitEndorsement validates and persists a free-standing endorsement.
func (in *Intake) SubmitEndorsement(issuerAddress, subjectAddress, typ, claim string, confidence float64, evidence string) (*Endorsement, error) {
	if in == nil || in.store == nil || in.graph == nil || in.registry == nil {
		return nil, ErrUnknownAgent
	}
	issuer, err := in.registry.Resolve(issuerAddress)
	if err != nil {
		return nil, ErrUnknownAgent
	}
	subject, err := in.registry.Resolve(subjectAddress)
	if err != nil {
		return nil, ErrUnknownAgent
	}
	if issuer.AgentID == subject.AgentID {
		return nil, ErrSameAgent
	}
	if confidence < 0 || confidence > 100 {
		return nil, ErrInvalidRange
	}

	endorsement := &Endorsement{
		ID:         uuid.NewString(),
		Type:       strings.TrimSpace(typ),
		Claim:      strings.TrimSpace(claim),
		Confidence: confidence,
		Issuer:     issuer.AgentID,
		Subject:    subject.AgentID,
		Active:     true,
		Evidence:   evidence,
		IssuedAt:   in.now(),
	}
	if err := in.store.PutEndorsement(endorsement); err != nil {
		return nil, err
	}

	if _, _, err := in.graph.Upsert(issuer.AgentID, subject.AgentID, graph.EdgeEndorsement, confidence, nil, endorsement.ID); err != nil {
		return nil, err
	}
	return endorsement, nil
}

// RevokeEndorsement deactivates the endorsement and its backing edge.
// Revocation is irreversible: a later SubmitEndorsement between the same
// pair creates a brand new record.
func (in *Intake) RevokeEndorsement(id string) error {
	if in == nil || in.store == nil || in.graph == nil {
		return ErrEndorsementNotFound
	}
	endorsement, ok, err := in.store.GetEndorsement(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEndorsementNotFound
	}
	if err := in.store.DeactivateEndorsement(id); err != nil {
		return err
	}
	_, err = in.graph.Deactivate(endorsement.Issuer, endorsement.Subject, graph.EdgeEndorsement)
	return err
}

// VotesForSubject returns every vote recorded against subject's agent id, for
// callers (the composite score pipeline) that need the raw quality/polarity
// history rather than the derived TrustEdge weight.
func (in *Intake) VotesForSubject(agentID string) ([]*Vote, error) {
	if in == nil || in.store == nil {
		return nil, nil
	}
	return in.store.VotesForSubject(agentID)
}

func voteSourceRef(receiptID [32]byte) string {
	return "receipt:" + uuid.NewSHA1(uuid.Nil, receiptID[:]).String()
}
